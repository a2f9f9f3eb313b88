package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineConnEmitsSingleClosedEvent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var setup setupMessage
		if err := conn.ReadJSON(&setup); err != nil {
			return
		}
		assert.Equal(t, "es", setup.Language)

		conn.WriteJSON(map[string]interface{}{"type": "transcript", "role": "user", "text": "hola"})
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		// server hangs up; the client loop must wind down on its own
	}))
	defer srv.Close()

	dialer := NewEngineDialer(config.EngineConfig{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http"),
		DialTimeout:       time.Second,
		SendSampleRate:    16000,
		ReceiveSampleRate: 24000,
	})
	conn, err := dialer.Dial(context.Background(), EngineParams{
		SessionID:    "s-1",
		LanguageCode: "es",
		ModeCode:     "conversation",
	})
	require.NoError(t, err)
	defer conn.Close()

	var events []EngineEvent
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				break loop
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("engine event channel never closed")
		}
	}

	require.NotEmpty(t, events)

	var closed int
	for _, ev := range events {
		if ev.Type == EngineClosed {
			closed++
		}
	}
	assert.Equal(t, 1, closed)
	assert.Equal(t, EngineClosed, events[len(events)-1].Type)

	// the frames sent before the hangup arrived in order
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, EngineTranscript, events[0].Type)
	assert.Equal(t, model.RoleUser, events[0].Role)
	assert.Equal(t, EngineAudio, events[1].Type)
}
