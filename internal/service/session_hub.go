package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxControlSize = 4096
	sweepInterval  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is one inbound text frame from the client. Audio travels as
// binary frames and never goes through JSON.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type startSessionPayload struct {
	ExternalID     string `json:"externalId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Mode           string `json:"mode"`
	Language       string `json:"language"`
	MotherLanguage string `json:"motherLanguage"`
}

// SessionClient is one connected learner socket.
type SessionClient struct {
	Hub     *SessionHub
	Conn    *websocket.Conn
	Relay   *Relay
	Limiter *rate.Limiter

	mu      sync.Mutex
	session *VoiceSession
}

// SessionHub owns every live voice session on this instance: upgrades,
// read/write pumps, the engine event pump and the idle sweep.
type SessionHub struct {
	Sessions *SessionService
	Dialer   EngineDialer

	EngineCfg  config.EngineConfig
	SessionCfg config.SessionConfig
	Clock      Clock

	mu   sync.RWMutex
	live map[string]*SessionClient

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSessionHub(sessions *SessionService, dialer EngineDialer, engineCfg config.EngineConfig, sessionCfg config.SessionConfig, clock Clock) *SessionHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionHub{
		Sessions:   sessions,
		Dialer:     dialer,
		EngineCfg:  engineCfg,
		SessionCfg: sessionCfg,
		Clock:      clock,
		live:       make(map[string]*SessionClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run drives the idle sweep until Shutdown.
func (h *SessionHub) Run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
			h.Sessions.SweepOrphans(h.ctx)
		}
	}
}

func (h *SessionHub) Shutdown() {
	h.cancel()
	h.mu.Lock()
	clients := make([]*SessionClient, 0, len(h.live))
	for _, c := range h.live {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.endSession(c, "server shutting down")
	}
}

// sweep closes sessions that went silent past the idle window. An idle
// session moves through closing like any other end and settles the turns
// it already logged.
func (h *SessionHub) sweep() {
	h.mu.RLock()
	var stale []*SessionClient
	for _, c := range h.live {
		vs := c.currentSession()
		if vs != nil && vs.IdleSince(h.SessionCfg.IdleTimeout) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		vs := c.currentSession()
		if vs == nil {
			continue
		}
		logger.Log.Info("closing idle session", zap.String("sessionId", vs.Record.ID))
		h.endSession(c, "idle timeout")
	}
}

// HandleWS upgrades the connection and serves it until disconnect.
func (h *SessionHub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &SessionClient{
		Hub:     h,
		Conn:    conn,
		Relay:   NewRelay(h.SessionCfg.OutboundQueueSize),
		Limiter: rate.NewLimiter(rate.Limit(10), 20),
	}

	go client.writePump()
	client.sendWelcome()
	client.readPump()
}

func (c *SessionClient) currentSession() *VoiceSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *SessionClient) setSession(vs *VoiceSession) {
	c.mu.Lock()
	c.session = vs
	c.mu.Unlock()
}

func (c *SessionClient) sendWelcome() {
	modes, langs, err := c.Hub.Sessions.Catalog()
	if err != nil {
		logger.Log.Error("catalog load failed", zap.Error(err))
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "service unavailable"}})
		return
	}

	modeList := make([]gin.H, 0, len(modes))
	for _, m := range modes {
		modeList = append(modeList, gin.H{
			"code":        m.Code,
			"name":        m.Name,
			"description": m.Description,
			"modality":    m.Modality,
		})
	}
	langList := make([]gin.H, 0, len(langs))
	for _, l := range langs {
		langList = append(langList, gin.H{"code": l.Code, "label": l.Label})
	}

	c.Relay.Enqueue(OutEvent{Type: EventWelcome, Data: gin.H{
		"modes":     modeList,
		"languages": langList,
	}})
}

func (c *SessionClient) readPump() {
	defer func() {
		c.Hub.handleDisconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(int64(c.Hub.EngineCfg.FrameBytes * 4))
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("websocket unexpected close", zap.Error(err))
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			c.handleAudio(data)
			continue
		}

		if !c.Limiter.Allow() {
			continue
		}
		if len(data) > maxControlSize {
			c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "control message too large"}})
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "malformed message"}})
			continue
		}

		switch msg.Type {
		case "start_session":
			c.Hub.startSession(c, msg.Data)
		case "end_session":
			c.Hub.endSession(c, "client request")
		default:
			c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "unknown message type: " + msg.Type}})
		}
	}
}

func (c *SessionClient) handleAudio(frame []byte) {
	vs := c.currentSession()
	if vs == nil {
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "no active session"}})
		return
	}
	if err := vs.HandleAudioFrame(frame); err != nil {
		logger.Log.Debug("audio frame rejected",
			zap.String("sessionId", vs.Record.ID), zap.Error(err))
	}
}

// writePump drains the relay onto the wire in order, one ping per period.
// Audio events leave as binary frames, the rest as JSON text frames.
func (c *SessionClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)

	events := make(chan OutEvent, 1)
	go forwardRelay(c.Relay, events, done)

	for {
		select {
		case ev, ok := <-events:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if ev.IsAudio() {
				if err := c.Conn.WriteMessage(websocket.BinaryMessage, ev.Binary); err != nil {
					return
				}
				continue
			}
			payload, err := ev.Marshal()
			if err != nil {
				logger.Log.Error("event marshal failed", zap.String("type", string(ev.Type)), zap.Error(err))
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forwardRelay bridges relay events onto ch until the relay closes or done
// signals that the writer is gone, so a dead connection never strands this
// goroutine on a full channel.
func forwardRelay(relay *Relay, ch chan OutEvent, done <-chan struct{}) {
	for {
		ev, ok := relay.Next()
		if !ok {
			close(ch)
			return
		}
		select {
		case ch <- ev:
		case <-done:
			return
		}
	}
}

func (h *SessionHub) startSession(c *SessionClient, raw json.RawMessage) {
	if c.currentSession() != nil {
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "session already running on this connection"}})
		return
	}

	var payload startSessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ExternalID == "" || payload.Mode == "" || payload.Language == "" {
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "start_session requires externalId, mode and language"}})
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.EngineCfg.DialTimeout)
	defer cancel()

	session, mode, rubric, err := h.Sessions.Open(ctx, OpenSessionInput{
		ExternalID:     payload.ExternalID,
		Name:           payload.Name,
		Email:          payload.Email,
		ModeCode:       payload.Mode,
		LanguageCode:   payload.Language,
		MotherLanguage: payload.MotherLanguage,
	})
	if err != nil {
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": err.Error()}})
		return
	}

	engine, err := h.Dialer.Dial(ctx, EngineParams{
		SessionID:      session.ID,
		LanguageCode:   session.LanguageCode,
		MotherLanguage: session.MotherLanguage,
		ModeCode:       session.ModeCode,
		Guidelines:     mode.Guidelines,
	})
	if err != nil {
		logger.Log.Error("engine dial failed", zap.String("sessionId", session.ID), zap.Error(err))
		h.Sessions.Expire(h.ctx, session.ID, nil, 0)
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "conversation engine unavailable"}})
		return
	}

	vs := NewVoiceSession(session, rubric, c.Relay, engine,
		h.Sessions.TurnRepo, h.Sessions.EvalRepo, h.Sessions.Cache,
		h.Clock, h.SessionCfg.MaxTurns)

	if err := h.Sessions.Activate(h.ctx, session); err != nil {
		engine.Close()
		h.Sessions.Expire(h.ctx, session.ID, nil, 0)
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "session could not be activated"}})
		return
	}
	vs.Record.State = model.SessionActive

	c.setSession(vs)
	h.mu.Lock()
	h.live[session.ID] = c
	h.mu.Unlock()

	go h.enginePump(c, vs)

	c.Relay.Enqueue(OutEvent{Type: EventSessionStarted, Data: gin.H{
		"sessionId":         session.ID,
		"mode":              session.ModeCode,
		"language":          session.LanguageCode,
		"rubricVersion":     session.RubricVersion,
		"sendSampleRate":    h.EngineCfg.SendSampleRate,
		"receiveSampleRate": h.EngineCfg.ReceiveSampleRate,
		"frameBytes":        h.EngineCfg.FrameBytes,
	}})
	logger.Log.Info("session started",
		zap.String("sessionId", session.ID),
		zap.Uint("userId", session.UserID),
		zap.String("mode", session.ModeCode))
}

// enginePump feeds engine events into the session until the engine channel
// closes. Engine loss during an active session ends it cleanly with a
// summary rather than leaving it to expire.
func (h *SessionHub) enginePump(c *SessionClient, vs *VoiceSession) {
	for ev := range vs.Engine.Events() {
		if ev.Type == EngineClosed {
			if c.currentSession() == vs && !vs.State().Terminal() {
				logger.Log.Warn("engine channel closed mid-session",
					zap.String("sessionId", vs.Record.ID), zap.Error(ev.Err))
				h.endSession(c, "engine disconnected")
			}
			return
		}
		if limitReached := vs.HandleEngineEvent(ev); limitReached {
			logger.Log.Info("turn limit reached",
				zap.String("sessionId", vs.Record.ID),
				zap.Int("turns", vs.TurnCount()))
			h.endSession(c, "turn limit reached")
			return
		}
	}
}

// endSession settles and emits session_ended. Idempotent through the
// summary store; concurrent callers all receive the same summary.
func (h *SessionHub) endSession(c *SessionClient, reason string) {
	vs := c.currentSession()
	if vs == nil {
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "no active session"}})
		return
	}

	sessionID := vs.Record.ID
	pcm := vs.DrainCapture()
	dropped := vs.DroppedFrames()
	vs.Engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := h.Sessions.Close(ctx, sessionID, pcm, dropped)
	if err != nil {
		logger.Log.Error("session close failed",
			zap.String("sessionId", sessionID), zap.String("reason", reason), zap.Error(err))
		c.Relay.Enqueue(OutEvent{Type: EventError, Data: gin.H{"message": "session close failed"}})
	} else {
		vs.Transition(model.SessionClosing)
		vs.Transition(model.SessionClosed)
		c.Relay.Enqueue(OutEvent{Type: EventSessionEnded, Data: gin.H{
			"sessionId": sessionID,
			"reason":    reason,
			"summary":   summary,
		}})
	}

	c.setSession(nil)
	h.mu.Lock()
	delete(h.live, sessionID)
	h.mu.Unlock()
}

// handleDisconnect runs when the client socket drops. The session gets a
// grace period for the learner to come back through a fresh open; after
// that it expires, settling whatever turns it already logged.
func (h *SessionHub) handleDisconnect(c *SessionClient) {
	vs := c.currentSession()
	if vs == nil {
		c.Relay.Close()
		return
	}

	sessionID := vs.Record.ID
	logger.Log.Info("client disconnected with live session",
		zap.String("sessionId", sessionID),
		zap.Duration("gracePeriod", h.SessionCfg.GracePeriod))

	go func() {
		select {
		case <-h.ctx.Done():
		case <-time.After(h.SessionCfg.GracePeriod):
		}

		// a new open for the same user may have closed it already
		if !vs.State().Terminal() {
			pcm := vs.DrainCapture()
			dropped := vs.DroppedFrames()
			vs.Engine.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.Sessions.Expire(ctx, sessionID, pcm, dropped); err != nil {
				logger.Log.Error("post-disconnect expire failed",
					zap.String("sessionId", sessionID), zap.Error(err))
			} else {
				vs.Transition(model.SessionExpired)
			}
		}

		h.mu.Lock()
		delete(h.live, sessionID)
		h.mu.Unlock()
		c.Relay.Close()
	}()
}
