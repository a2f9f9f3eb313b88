package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/util"
	"lingua_voice_backend/pkg/logger"
	"lingua_voice_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// turnBuffer accumulates transcript fragments for one speaker until the
// engine signals a turn boundary.
type turnBuffer struct {
	fragments []string
	lastSent  string
	startedAt time.Time
}

func (b *turnBuffer) append(fragment string) bool {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return false
	}
	if n := len(b.fragments); n > 0 && b.fragments[n-1] == fragment {
		return false
	}
	b.fragments = append(b.fragments, fragment)
	return true
}

// text joins the fragments and collapses runs of whitespace.
func (b *turnBuffer) text() string {
	return strings.Join(strings.Fields(strings.Join(b.fragments, " ")), " ")
}

func (b *turnBuffer) reset() {
	b.fragments = b.fragments[:0]
	b.lastSent = ""
	b.startedAt = time.Time{}
}

// VoiceSession owns the in-memory state of one live session: the state
// machine, the per-role turn buffers, the dense turn counter and the audio
// capture. All mutation goes through its mutex; the hub calls in from both
// the client read loop and the engine event loop.
type VoiceSession struct {
	mu sync.Mutex

	Record *model.Session
	Rubric *Rubric
	Relay  *Relay
	Engine EngineConn

	scorer   *TurnScorer
	turnRepo TurnStore
	evalRepo EvaluationStore
	cache    SessionCacheStore
	clock    Clock

	buffers         map[model.TurnRole]*turnBuffer
	pendingAnalysis model.MetricMap
	capture         []byte
	captureLimit    int
	lastActivity    time.Time
	maxTurns        int
}

func NewVoiceSession(
	record *model.Session,
	rubric *Rubric,
	relay *Relay,
	engine EngineConn,
	turnRepo TurnStore,
	evalRepo EvaluationStore,
	cache SessionCacheStore,
	clock Clock,
	maxTurns int,
) *VoiceSession {
	return &VoiceSession{
		Record:   record,
		Rubric:   rubric,
		Relay:    relay,
		Engine:   engine,
		scorer:   NewTurnScorer(rubric),
		turnRepo: turnRepo,
		evalRepo: evalRepo,
		cache:    cache,
		clock:    clock,
		buffers: map[model.TurnRole]*turnBuffer{
			model.RoleUser:      {},
			model.RoleAssistant: {},
		},
		captureLimit: 64 << 20, // 64 MiB of raw PCM, ~35 min at 16kHz
		lastActivity: clock.Now(),
		maxTurns:     maxTurns,
	}
}

func (vs *VoiceSession) State() model.SessionState {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.Record.State
}

// Transition applies a state change in memory. The caller persists it; the
// in-memory record is authoritative for the live connection.
func (vs *VoiceSession) Transition(next model.SessionState) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if !vs.Record.State.CanTransition(next) {
		return util.ErrInvalidTransition
	}
	vs.Record.State = next
	return nil
}

// HandleAudioFrame forwards one client PCM frame to the engine and tees it
// into the archive capture. Frames arriving outside the active state are
// rejected, not buffered.
func (vs *VoiceSession) HandleAudioFrame(frame []byte) error {
	vs.mu.Lock()
	if vs.Record.State != model.SessionActive {
		vs.mu.Unlock()
		return util.ErrSessionNotActive
	}
	if len(vs.capture)+len(frame) <= vs.captureLimit {
		vs.capture = append(vs.capture, frame...)
	}
	vs.lastActivity = vs.clock.Now()
	engine := vs.Engine
	vs.mu.Unlock()

	if err := engine.SendAudio(frame); err != nil {
		monitoring.DroppedFrames.WithLabelValues("inbound").Inc()
		return err
	}
	return nil
}

// HandleEngineEvent routes one engine event. Returns true when the session
// hit its turn limit and should be closed by the caller.
func (vs *VoiceSession) HandleEngineEvent(ev EngineEvent) bool {
	switch ev.Type {
	case EngineAudio:
		vs.Relay.Enqueue(OutEvent{Type: EventAudio, Binary: ev.Audio})
		return false
	case EngineTranscript:
		vs.handleTranscript(ev)
		return false
	case EngineAnalysis:
		vs.mu.Lock()
		vs.pendingAnalysis = ev.Metrics
		vs.mu.Unlock()
		return false
	case EngineTurnBoundary:
		return vs.finalizeTurn(ev.Role)
	default:
		return false
	}
}

func (vs *VoiceSession) handleTranscript(ev EngineEvent) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.Record.State != model.SessionActive {
		return
	}

	buf := vs.buffers[ev.Role]
	if buf.startedAt.IsZero() {
		buf.startedAt = vs.clock.Now()
	}
	if !buf.append(ev.Text) {
		return
	}
	vs.lastActivity = vs.clock.Now()

	cumulative := buf.text()
	if cumulative == buf.lastSent {
		return
	}
	buf.lastSent = cumulative

	vs.Relay.Enqueue(OutEvent{Type: EventTranscription, Data: map[string]interface{}{
		"role":      ev.Role,
		"text":      cumulative,
		"turnIndex": vs.Record.TurnCount,
	}})
}

// finalizeTurn flushes the speaker's buffer into a durable Turn row and,
// for user turns, scores it. The turn counter only advances after the row
// is written, which keeps turn indexes dense even across write failures.
func (vs *VoiceSession) finalizeTurn(role model.TurnRole) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.Record.State != model.SessionActive {
		return false
	}

	buf := vs.buffers[role]
	text := buf.text()
	analysis := vs.pendingAnalysis
	if role == model.RoleUser {
		vs.pendingAnalysis = nil
	}

	if text == "" && len(analysis) == 0 {
		buf.reset()
		return false
	}

	turn := &model.Turn{
		SessionID: vs.Record.ID,
		TurnIndex: vs.Record.TurnCount,
		Role:      role,
		Text:      text,
	}
	if !buf.startedAt.IsZero() {
		start := buf.startedAt.UnixMilli()
		end := vs.clock.Now().UnixMilli()
		turn.AudioStartMs = &start
		turn.AudioEndMs = &end
	}

	if err := vs.turnRepo.Create(turn); err != nil {
		logger.Log.Error("turn write failed, index not advanced",
			zap.String("sessionId", vs.Record.ID),
			zap.Int("turnIndex", turn.TurnIndex),
			zap.Error(err))
		buf.reset()
		return false
	}
	vs.Record.TurnCount++
	buf.reset()
	vs.lastActivity = vs.clock.Now()

	// keep the hot-tier record fresh while turns are landing
	if vs.cache != nil {
		if err := vs.cache.Touch(context.Background(), vs.Record.ID); err != nil {
			logger.Log.Debug("cache touch failed", zap.String("sessionId", vs.Record.ID), zap.Error(err))
		}
	}

	if role == model.RoleUser {
		vs.scoreTurn(turn, analysis)
	}

	vs.Relay.Enqueue(OutEvent{Type: EventTurnComplete, Data: map[string]interface{}{
		"turnIndex": turn.TurnIndex,
		"role":      role,
		"text":      text,
	}})

	return vs.maxTurns > 0 && vs.Record.TurnCount >= vs.maxTurns
}

func (vs *VoiceSession) scoreTurn(turn *model.Turn, analysis model.MetricMap) {
	metrics, total, ok := vs.scorer.Evaluate(turn.Text, analysis)
	if !ok {
		monitoring.TurnsScored.WithLabelValues(vs.Record.ModeCode, "unscored").Inc()
		return
	}

	eval := &model.Evaluation{
		TurnID:        turn.ID,
		SessionID:     vs.Record.ID,
		UserID:        vs.Record.UserID,
		ModeCode:      vs.Record.ModeCode,
		Metrics:       metrics,
		TotalScore:    total,
		RubricVersion: vs.Rubric.Version,
	}
	if err := vs.evalRepo.Create(eval); err != nil {
		logger.Log.Error("evaluation write failed",
			zap.String("sessionId", vs.Record.ID),
			zap.Int("turnIndex", turn.TurnIndex),
			zap.Error(err))
		return
	}

	outcome := "failed"
	if vs.Rubric.Passed(total) {
		outcome = "passed"
	}
	monitoring.TurnsScored.WithLabelValues(vs.Record.ModeCode, outcome).Inc()

	vs.Relay.Enqueue(OutEvent{Type: EventFeedback, Data: map[string]interface{}{
		"turnIndex":  turn.TurnIndex,
		"totalScore": total,
		"metrics":    metrics,
		"passed":     vs.Rubric.Passed(total),
	}})
}

// IdleSince reports whether no client or engine activity happened within d.
func (vs *VoiceSession) IdleSince(d time.Duration) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.clock.Now().Sub(vs.lastActivity) > d
}

// DrainCapture hands over the accumulated PCM and clears the buffer.
func (vs *VoiceSession) DrainCapture() []byte {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	pcm := vs.capture
	vs.capture = nil
	return pcm
}

func (vs *VoiceSession) DroppedFrames() int64 {
	return vs.Relay.Dropped()
}

func (vs *VoiceSession) TurnCount() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.Record.TurnCount
}
