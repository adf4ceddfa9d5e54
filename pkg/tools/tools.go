// Package tools implements the functions the assistant can call during a
// conversation, and the dispatch from LLM function calls to Go code.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/llm"
)

const weatherTimeout = 10 * time.Second

// Registry holds the available tools and their LLM-facing definitions.
type Registry struct {
	weather *WeatherClient
}

func NewRegistry(weather *WeatherClient) *Registry {
	return &Registry{weather: weather}
}

// Definitions returns the function schemas to advertise in chat requests.
func (r *Registry) Definitions() []llm.FunctionDefinition {
	return []llm.FunctionDefinition{
		{
			Name:        "getCurrentWeather",
			Description: "Get the current weather in a given location",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
				},
				"required": []string{"location"},
			},
		},
		{
			Name:        "getForecast",
			Description: "Get the weather forecast for a given location",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
				},
				"required": []string{"location"},
			},
		},
	}
}

// Dispatch runs the named tool with JSON-encoded arguments and returns its
// result as a string for the function message.
func (r *Registry) Dispatch(ctx context.Context, call llm.FunctionCall) (string, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "", fmt.Errorf("parse arguments for %s: %w", call.Name, err)
	}

	switch call.Name {
	case "getCurrentWeather":
		return r.weather.Current(ctx, args.Location)
	case "getForecast":
		return Forecast(args.Location), nil
	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}

// WeatherClient fetches current conditions from wttr.in.
type WeatherClient struct {
	baseURL string
	client  *http.Client
}

// NewWeatherClient uses the public wttr.in service when baseURL is empty.
func NewWeatherClient(baseURL string) *WeatherClient {
	if baseURL == "" {
		baseURL = "https://wttr.in"
	}
	return &WeatherClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: weatherTimeout},
	}
}

// Current returns the raw j1 JSON report for the location.
func (w *WeatherClient) Current(ctx context.Context, location string) (string, error) {
	u := fmt.Sprintf("%s/%s?format=j1", w.baseURL, url.PathEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build weather request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch weather for %q: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather service returned %s for %q", resp.Status, location)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read weather response: %w", err)
	}
	return string(body), nil
}

// Forecast returns a canned forecast regardless of location.
func Forecast(location string) string {
	return "cold with a temperature of 30 degrees."
}
