package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/util"
	"lingua_voice_backend/pkg/logger"
	"lingua_voice_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionService owns session lifecycle outside the live socket: opening,
// closing (idempotently), and the read API over turns and summaries.
type SessionService struct {
	UserRepo    UserStore
	SessionRepo SessionStore
	TurnRepo    TurnStore
	EvalRepo    EvaluationStore
	SummaryRepo SummaryStore
	ModeRepo    ModeStore
	LangRepo    LanguageStore
	Cache       SessionCacheStore

	Ledger  *LedgerService
	Archive *ArchiveService

	SessionCfg config.SessionConfig
	XPCfg      config.XPConfig
	Clock      Clock
	Location   *time.Location
}

type OpenSessionInput struct {
	ExternalID     string
	Name           string
	Email          string
	ModeCode       string
	LanguageCode   string
	MotherLanguage string
}

// Open resolves the user, validates mode and language, pins the rubric and
// creates the session in the opening state. Any session the user still has
// open is closed first, so one user never holds two live sessions.
func (s *SessionService) Open(ctx context.Context, in OpenSessionInput) (*model.Session, *model.TeachingMode, *Rubric, error) {
	mode, err := s.ModeRepo.FindByCode(in.ModeCode)
	if err != nil {
		return nil, nil, nil, util.ErrModeNotFound
	}
	if _, err := s.LangRepo.FindByCode(in.LanguageCode); err != nil {
		return nil, nil, nil, util.ErrLanguageNotFound
	}

	rubric, err := NewRubric(mode, s.XPCfg.PassMark)
	if err != nil {
		return nil, nil, nil, err
	}

	user, err := s.resolveUser(in)
	if err != nil {
		return nil, nil, nil, err
	}

	if prev, err := s.SessionRepo.FindActiveByUser(user.ID); err == nil {
		logger.Log.Info("closing stale session before opening a new one",
			zap.String("sessionId", prev.ID), zap.Uint("userId", user.ID))
		if _, err := s.Close(ctx, prev.ID, nil, 0); err != nil {
			logger.Log.Warn("stale session close failed", zap.String("sessionId", prev.ID), zap.Error(err))
		}
	}

	session := &model.Session{
		UserID:         user.ID,
		ModeCode:       mode.Code,
		LanguageCode:   in.LanguageCode,
		MotherLanguage: in.MotherLanguage,
		State:          model.SessionOpening,
		RubricVersion:  mode.RubricVersion,
		StartedAt:      s.Clock.Now(),
	}
	if err := s.SessionRepo.Create(session); err != nil {
		return nil, nil, nil, fmt.Errorf("create session: %w", err)
	}

	claimed, err := s.Cache.ClaimActive(ctx, user.ID, session.ID, s.SessionCfg.CacheTTL)
	if err != nil {
		logger.Log.Warn("active claim failed", zap.String("sessionId", session.ID), zap.Error(err))
	} else if !claimed {
		// a racing open won; the DB check above missed it
		s.SessionRepo.MarkExpired(session.ID, s.Clock.Now())
		return nil, nil, nil, util.ErrActiveSessionOpen
	}
	if err := s.Cache.PutSession(ctx, session); err != nil {
		logger.Log.Warn("session cache write failed", zap.String("sessionId", session.ID), zap.Error(err))
	}

	monitoring.ActiveSessions.Inc()
	return session, mode, rubric, nil
}

func (s *SessionService) resolveUser(in OpenSessionInput) (*model.User, error) {
	user, err := s.UserRepo.FindByExternalID(in.ExternalID)
	if err == nil {
		s.UserRepo.TouchLastLogin(user.ID)
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &model.User{
		ExternalID: in.ExternalID,
		Name:       in.Name,
		Email:      in.Email,
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Activate moves an opening session to active once the engine channel is up.
func (s *SessionService) Activate(ctx context.Context, session *model.Session) error {
	if err := s.SessionRepo.UpdateState(session.ID, model.SessionOpening, model.SessionActive); err != nil {
		return util.ErrInvalidTransition
	}
	session.State = model.SessionActive
	if err := s.Cache.PutSession(ctx, session); err != nil {
		logger.Log.Warn("session cache write failed", zap.String("sessionId", session.ID), zap.Error(err))
	}
	return nil
}

// Close finishes a session and settles its progress. Safe to call any
// number of times: once a summary row exists for the session, every later
// call returns that same summary without touching the ledger.
func (s *SessionService) Close(ctx context.Context, sessionID string, pcm []byte, droppedFrames int64) (*model.SummaryData, error) {
	if existing, err := s.SummaryRepo.FindBySession(sessionID); err == nil {
		return &existing.Summary, nil
	}

	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return nil, util.ErrSessionNotFound
	}
	if session.State == model.SessionExpired {
		return nil, util.ErrSessionExpired
	}
	if session.State.Terminal() {
		return nil, util.ErrSummaryNotFound
	}

	// opening sessions fold straight into closing
	from := session.State
	if from == model.SessionOpening || from == model.SessionActive {
		if err := s.SessionRepo.UpdateState(sessionID, from, model.SessionClosing); err != nil {
			// lost the race with a concurrent close; surface its summary
			if existing, serr := s.SummaryRepo.FindBySession(sessionID); serr == nil {
				return &existing.Summary, nil
			}
			return nil, util.ErrInvalidTransition
		}
		session.State = model.SessionClosing
	}

	summary, err := s.settle(ctx, session, pcm, droppedFrames)
	if err != nil {
		return nil, err
	}

	closedAt := s.Clock.Now()
	if err := s.SessionRepo.MarkClosed(sessionID, closedAt, summary.TotalTurns, summary.DroppedFrames); err != nil {
		logger.Log.Error("mark closed failed", zap.String("sessionId", sessionID), zap.Error(err))
	}
	s.Cache.RemoveSession(ctx, sessionID)
	s.Cache.ReleaseActive(ctx, session.UserID, sessionID)
	monitoring.ActiveSessions.Dec()

	return summary, nil
}

func (s *SessionService) settle(ctx context.Context, session *model.Session, pcm []byte, droppedFrames int64) (*model.SummaryData, error) {
	turns, err := s.TurnRepo.ListBySession(session.ID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	evals, err := s.EvalRepo.ListBySession(session.ID)
	if err != nil {
		return nil, fmt.Errorf("load evaluations: %w", err)
	}

	mode, err := s.ModeRepo.FindByCode(session.ModeCode)
	if err != nil {
		return nil, util.ErrModeNotFound
	}

	agg := s.buildAggregates(session, mode, turns, evals)
	agg.DroppedFrames = droppedFrames

	if len(pcm) > 0 && s.Archive != nil {
		object, err := s.Archive.Store(ctx, session.ID, pcm)
		if err != nil {
			logger.Log.Warn("audio archive failed", zap.String("sessionId", session.ID), zap.Error(err))
		} else {
			agg.AudioObject = object
		}
	}

	return s.Ledger.Settle(ctx, session, mode, agg, evals)
}

// buildAggregates computes the score statistics half of the summary; the
// ledger fills in XP, streak and badges afterwards.
func (s *SessionService) buildAggregates(session *model.Session, mode *model.TeachingMode, turns []model.Turn, evals []model.Evaluation) *model.SummaryData {
	agg := &model.SummaryData{
		TotalTurns:     len(turns),
		ScoredTurns:    len(evals),
		MetricAverages: map[string]float64{},
	}

	var userTurns int
	for _, t := range turns {
		if t.Role == model.RoleUser {
			userTurns++
		}
	}
	agg.UnscoredTurns = userTurns - len(evals)
	if agg.UnscoredTurns < 0 {
		agg.UnscoredTurns = 0
	}

	if len(evals) == 0 {
		agg.ScoreTrend = "stable"
		agg.DurationSeconds = s.duration(session)
		return agg
	}

	var scoreSum int
	metricSums := map[string]float64{}
	metricCounts := map[string]int{}
	for _, e := range evals {
		scoreSum += e.TotalScore
		if e.TotalScore >= s.XPCfg.PassMark {
			agg.CorrectTurns++
		}
		for name, v := range e.Metrics {
			metricSums[name] += v
			metricCounts[name]++
		}
	}
	agg.AverageScore = float64(scoreSum) / float64(len(evals))
	agg.AccuracyPct = agg.CorrectTurns * 100 / len(evals)
	for name, sum := range metricSums {
		agg.MetricAverages[name] = sum / float64(metricCounts[name])
	}

	agg.ScoreTrend = scoreTrend(evals)
	agg.Strengths, agg.Improvements = metricVerdicts(agg.MetricAverages, mode)
	agg.DurationSeconds = s.duration(session)
	return agg
}

func (s *SessionService) duration(session *model.Session) int {
	return int(s.Clock.Now().Sub(session.StartedAt).Seconds())
}

// scoreTrend compares the first and last three scored turns. Sessions with
// fewer than four scored turns have no meaningful direction.
func scoreTrend(evals []model.Evaluation) string {
	if len(evals) < 4 {
		return "stable"
	}
	window := 3
	var early, late float64
	for i := 0; i < window; i++ {
		early += float64(evals[i].TotalScore)
		late += float64(evals[len(evals)-window+i].TotalScore)
	}
	diff := (late - early) / float64(window)
	switch {
	case diff > 5:
		return "improving"
	case diff < -5:
		return "declining"
	default:
		return "stable"
	}
}

// metricVerdicts splits competencies into strengths (>=70% of the scale)
// and areas for improvement (<50%).
func metricVerdicts(averages map[string]float64, mode *model.TeachingMode) (strengths, improvements []string) {
	span := mode.ScaleMax - mode.ScaleMin
	if span <= 0 {
		return nil, nil
	}
	names := make([]string, 0, len(averages))
	for name := range averages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pct := (averages[name] - mode.ScaleMin) / span
		switch {
		case pct >= 0.7:
			strengths = append(strengths, name)
		case pct < 0.5:
			improvements = append(improvements, name)
		}
	}
	return strengths, improvements
}

// Expire force-terminates a session whose connection was lost or whose
// hot-tier record lapsed. The turns already durably logged still settle
// into the ledger before the state lands on expired.
func (s *SessionService) Expire(ctx context.Context, sessionID string, pcm []byte, droppedFrames int64) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return util.ErrSessionNotFound
	}
	if session.State.Terminal() {
		s.Cache.RemoveSession(ctx, sessionID)
		return nil
	}

	turns, err := s.TurnRepo.ListBySession(sessionID)
	if err == nil && len(turns) > 0 {
		if _, err := s.settle(ctx, session, pcm, droppedFrames); err != nil {
			logger.Log.Error("expired session settle failed",
				zap.String("sessionId", sessionID), zap.Error(err))
		}
	}

	if err := s.SessionRepo.MarkExpired(sessionID, s.Clock.Now()); err != nil {
		return err
	}
	s.Cache.RemoveSession(ctx, sessionID)
	s.Cache.ReleaseActive(ctx, session.UserID, sessionID)
	monitoring.ActiveSessions.Dec()
	logger.Log.Info("session expired", zap.String("sessionId", sessionID))
	return nil
}

// GetSession reads through the hot tier first; closed sessions only live
// in MySQL.
func (s *SessionService) GetSession(id string) (*model.Session, error) {
	if cached, err := s.Cache.GetSession(context.Background(), id); err == nil {
		return cached, nil
	}
	session, err := s.SessionRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) GetSummary(sessionID string) (*model.SummaryData, error) {
	summary, err := s.SummaryRepo.FindBySession(sessionID)
	if err != nil {
		return nil, util.ErrSummaryNotFound
	}
	return &summary.Summary, nil
}

func (s *SessionService) GetTurns(sessionID string) ([]model.Turn, error) {
	if _, err := s.SessionRepo.FindByID(sessionID); err != nil {
		return nil, util.ErrSessionNotFound
	}
	return s.TurnRepo.ListBySession(sessionID)
}

func (s *SessionService) ListSessions(userID uint, page, limit int) ([]model.Session, int64, error) {
	return s.SessionRepo.ListByUser(userID, page, limit)
}

// SweepOrphans expires sessions whose hot-tier record lapsed without a
// clean close, e.g. after an instance crash. The live index outlives the
// per-session keys, so leftover ids mark the casualties.
func (s *SessionService) SweepOrphans(ctx context.Context) {
	ids, err := s.Cache.LiveSessionIDs(ctx)
	if err != nil {
		logger.Log.Warn("live index read failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := s.Cache.GetSession(ctx, id); err == nil {
			continue
		}
		if err := s.Expire(ctx, id, nil, 0); err != nil {
			logger.Log.Warn("orphan expire failed", zap.String("sessionId", id), zap.Error(err))
		}
	}
}

// Catalog returns the enabled modes and languages for the welcome event.
func (s *SessionService) Catalog() ([]model.TeachingMode, []model.Language, error) {
	modes, err := s.ModeRepo.ListEnabled()
	if err != nil {
		return nil, nil, err
	}
	langs, err := s.LangRepo.ListEnabled()
	if err != nil {
		return nil, nil, err
	}
	return modes, langs, nil
}
