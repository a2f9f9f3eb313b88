package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/util"
	"lingua_voice_backend/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EngineParams describes the session handed to the engine at dial time.
type EngineParams struct {
	SessionID      string
	LanguageCode   string
	MotherLanguage string
	ModeCode       string
	Guidelines     map[string]string
}

// EngineConn is one live duplex channel to the conversational AI engine.
type EngineConn interface {
	SendAudio(frame []byte) error
	Events() <-chan EngineEvent
	Close() error
}

// EngineDialer opens engine connections. The production dialer speaks
// WebSocket; tests substitute a fake.
type EngineDialer interface {
	Dial(ctx context.Context, params EngineParams) (EngineConn, error)
}

type wsEngineDialer struct {
	cfg config.EngineConfig
}

func NewEngineDialer(cfg config.EngineConfig) EngineDialer {
	return &wsEngineDialer{cfg: cfg}
}

// setupMessage is the first frame sent after the handshake; the engine
// answers nothing until it arrives.
type setupMessage struct {
	Model             string            `json:"model"`
	Language          string            `json:"language"`
	MotherLanguage    string            `json:"motherLanguage,omitempty"`
	Mode              string            `json:"mode"`
	Guidelines        map[string]string `json:"guidelines,omitempty"`
	SendSampleRate    int               `json:"sendSampleRate"`
	ReceiveSampleRate int               `json:"receiveSampleRate"`
}

func (d *wsEngineDialer) Dial(ctx context.Context, params EngineParams) (EngineConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.DialTimeout}

	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	conn, _, err := dialer.DialContext(ctx, d.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrEngineUnavailable, err)
	}

	setup := setupMessage{
		Model:             d.cfg.Model,
		Language:          params.LanguageCode,
		MotherLanguage:    params.MotherLanguage,
		Mode:              params.ModeCode,
		Guidelines:        params.Guidelines,
		SendSampleRate:    d.cfg.SendSampleRate,
		ReceiveSampleRate: d.cfg.ReceiveSampleRate,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: setup failed: %v", util.ErrEngineUnavailable, err)
	}

	ec := &wsEngineConn{
		conn:      conn,
		sessionID: params.SessionID,
		events:    make(chan EngineEvent, 64),
		done:      make(chan struct{}),
	}
	go ec.readLoop()
	return ec, nil
}

type wsEngineConn struct {
	conn      *websocket.Conn
	sessionID string
	events    chan EngineEvent
	done      chan struct{}
}

func (c *wsEngineConn) SendAudio(frame []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsEngineConn) Events() <-chan EngineEvent {
	return c.events
}

func (c *wsEngineConn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	close(c.done)
	return c.conn.Close()
}

// readLoop translates raw engine frames into EngineEvents. Binary frames
// are synthesized audio; text frames are JSON control messages. Exactly one
// EngineClosed lands on the channel before it closes, and every send aborts
// on done so a gone consumer never strands the loop.
func (c *wsEngineConn) readLoop() {
	var readErr error
	defer func() {
		select {
		case c.events <- EngineEvent{Type: EngineClosed, Err: readErr}:
		default:
		}
		close(c.events)
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Log.Warn("engine connection lost",
					zap.String("sessionId", c.sessionID), zap.Error(err))
				readErr = err
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			select {
			case c.events <- EngineEvent{Type: EngineAudio, Role: model.RoleAssistant, Audio: data}:
			case <-c.done:
				return
			}
			continue
		}

		var raw struct {
			Type    string          `json:"type"`
			Role    string          `json:"role"`
			Text    string          `json:"text"`
			Metrics model.MetricMap `json:"metrics"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			logger.Log.Debug("unparseable engine message", zap.String("sessionId", c.sessionID))
			continue
		}

		ev := EngineEvent{Text: raw.Text, Metrics: raw.Metrics}
		switch raw.Role {
		case "assistant", "model":
			ev.Role = model.RoleAssistant
		default:
			ev.Role = model.RoleUser
		}

		switch raw.Type {
		case "transcript", "transcription":
			ev.Type = EngineTranscript
		case "turn_boundary", "turn_complete":
			ev.Type = EngineTurnBoundary
		case "analysis":
			ev.Type = EngineAnalysis
		default:
			continue
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
