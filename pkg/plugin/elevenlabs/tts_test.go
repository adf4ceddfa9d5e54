package elevenlabs

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

	"github.com/chriscow/meetbot/pkg/ai/tts"
)

// fakeSynthesisServer returns the given PCM payload split across two audio
// messages, then a final marker.
func fakeSynthesisServer(t *testing.T, pcm []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") == "" {
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}
		if !strings.Contains(r.URL.Path, "/stream-input") {
			http.Error(w, "wrong path", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// Drain the prime, text and end-of-input messages.
		for i := 0; i < 3; i++ {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
		}

		half := len(pcm) / 2
		conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(pcm[:half])})
		conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(pcm[half:])})
		conn.WriteJSON(map[string]any{"isFinal": true})
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewTTS_RequiresKey(t *testing.T) {
	is := is.New(t)
	_, err := NewTTS(Config{})
	is.True(err != nil)
}

func TestSynthesize_FramesOutput(t *testing.T) {
	is := is.New(t)

	// 2.5 frames worth of 16 kHz mono PCM.
	const frameBytes = 320
	pcm := make([]byte, frameBytes*2+frameBytes/2)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	srv := fakeSynthesisServer(t, pcm)
	defer srv.Close()

	provider, err := NewTTS(Config{APIKey: "test", BaseURL: wsURL(srv)})
	is.NoErr(err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := provider.Synthesize(ctx, tts.SynthesizeRequest{Text: "hello there"})
	is.NoErr(err)

	var got [][]byte
	for f := range frames {
		is.Equal(f.SampleRate, 16000)
		is.Equal(f.NumChannels, 1)
		is.Equal(len(f.Data), frameBytes)
		got = append(got, f.Data)
	}

	// Two full frames plus one zero-padded partial.
	is.Equal(len(got), 3)
	is.Equal(got[0], pcm[:frameBytes])
	is.Equal(got[1], pcm[frameBytes:frameBytes*2])
	is.Equal(got[2][:frameBytes/2], pcm[frameBytes*2:])
	for _, b := range got[2][frameBytes/2:] {
		is.Equal(b, byte(0))
	}
}

func TestSynthesize_DialFailure(t *testing.T) {
	is := is.New(t)
	provider, err := NewTTS(Config{APIKey: "test", BaseURL: "ws://127.0.0.1:1"})
	is.NoErr(err)

	_, err = provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi"})
	is.True(err != nil)
}
