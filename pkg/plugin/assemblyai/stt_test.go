package assemblyai

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"

	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/rtc"
)

// fakeRealtimeServer speaks just enough of the realtime protocol for the
// stream tests: it echoes each audio message back as a final transcript of
// its decoded byte length.
func fakeRealtimeServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]any{"message_type": "SessionBegins"})
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["terminate_session"] == true {
				conn.WriteJSON(map[string]any{"message_type": "SessionTerminated"})
				return
			}
			if data, ok := msg["audio_data"].(string); ok {
				decoded, err := base64.StdEncoding.DecodeString(data)
				if err != nil {
					conn.WriteJSON(map[string]any{"message_type": "Error", "error": "bad audio"})
					continue
				}
				conn.WriteJSON(map[string]any{
					"message_type": "PartialTranscript",
					"text":         "partial",
				})
				conn.WriteJSON(map[string]any{
					"message_type": "FinalTranscript",
					"text":         strings.Repeat("x", len(decoded)),
				})
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewSTT_RequiresKey(t *testing.T) {
	is := is.New(t)
	_, err := NewSTT(Config{})
	is.True(err != nil)
}

func TestStream_Transcribes(t *testing.T) {
	is := is.New(t)
	srv := fakeRealtimeServer(t)
	defer srv.Close()

	provider, err := NewSTT(Config{APIKey: "test", BaseURL: wsURL(srv)})
	is.NoErr(err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := provider.NewStream(ctx, stt.StreamConfig{SampleRate: 16000})
	is.NoErr(err)

	frame := rtc.AudioFrame{Data: make([]byte, 4), SampleRate: 16000, SamplesPerChannel: 2, NumChannels: 1}
	is.NoErr(stream.Push(frame))

	var got []stt.SpeechEvent
	for ev := range stream.Events() {
		got = append(got, ev)
		if ev.IsFinal {
			break
		}
	}
	is.Equal(len(got), 2)
	is.Equal(got[0].Type, stt.SpeechEventInterim)
	is.Equal(got[1].Type, stt.SpeechEventFinal)
	is.Equal(got[1].Text, "xxxx")

	is.NoErr(stream.CloseSend())
}

func TestStream_CloseSendEndsEvents(t *testing.T) {
	is := is.New(t)
	srv := fakeRealtimeServer(t)
	defer srv.Close()

	provider, err := NewSTT(Config{APIKey: "test", BaseURL: wsURL(srv)})
	is.NoErr(err)

	stream, err := provider.NewStream(context.Background(), stt.StreamConfig{})
	is.NoErr(err)
	is.NoErr(stream.CloseSend())

	// Channel must close after the server acknowledges termination.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-stream.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel did not close after CloseSend")
		}
	}
}

func TestStream_PushAfterCloseFails(t *testing.T) {
	is := is.New(t)
	srv := fakeRealtimeServer(t)
	defer srv.Close()

	provider, err := NewSTT(Config{APIKey: "test", BaseURL: wsURL(srv)})
	is.NoErr(err)

	stream, err := provider.NewStream(context.Background(), stt.StreamConfig{})
	is.NoErr(err)
	is.NoErr(stream.CloseSend())

	err = stream.Push(rtc.AudioFrame{Data: []byte{0, 0}})
	is.True(err != nil)
}
