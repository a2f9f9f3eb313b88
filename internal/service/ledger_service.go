package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/util"
	"lingua_voice_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ledgerLockTTL      = 10 * time.Second
	ledgerLockAttempts = 5
	ledgerLockBackoff  = 200 * time.Millisecond
)

var badgeTitles = map[string]string{
	"streak_3":           "3-Day Streak",
	"streak_7":           "Week Warrior",
	"streak_30":          "Monthly Master",
	"accuracy_master_80": "Accuracy Master",
	"perfect_day":        "Perfect Day",
	"centurion":          "Centurion",
}

// LedgerService settles a closed session into the progress ledger: XP
// entries, streak, mastery records, badges and the summary row, all in one
// database transaction guarded by a per-user Redis lock. The summary row's
// unique session index makes the whole settlement idempotent.
type LedgerService struct {
	DB          TxRunner
	XPRepo      XPStore
	StreakRepo  StreakStore
	MasteryRepo MasteryStore
	BadgeRepo   BadgeStore
	SummaryRepo SummaryStore
	SessionRepo SessionStore
	EvalRepo    EvaluationStore
	Cache       LedgerLocker

	XPCfg            config.XPConfig
	ExpectedDuration time.Duration
	Clock            Clock
	Location         *time.Location
}

// Settle fills the XP, streak and badge portion of the aggregates and
// persists everything. Either every row lands or none do.
func (l *LedgerService) Settle(ctx context.Context, session *model.Session, mode *model.TeachingMode, agg *model.SummaryData, evals []model.Evaluation) (*model.SummaryData, error) {
	if err := l.lock(ctx, session.UserID); err != nil {
		return nil, err
	}
	defer l.Cache.ReleaseLedgerLock(ctx, session.UserID)

	// another settle may have slipped in before the lock
	if existing, err := l.SummaryRepo.FindBySession(session.ID); err == nil {
		return &existing.Summary, nil
	}

	now := l.Clock.Now().In(l.Location)
	today := DayStart(now, l.Location)

	err := l.DB.Transaction(func(tx *gorm.DB) error {
		streak, err := l.StreakRepo.FindByUser(tx, session.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			streak = &model.Streak{UserID: session.UserID}
		} else if err != nil {
			return fmt.Errorf("streak: %w", err)
		}

		firstToday, err := l.isFirstSessionToday(tx, session, today)
		if err != nil {
			return fmt.Errorf("first-of-day: %w", err)
		}

		// XP is computed from the streak as it stood before this session;
		// the streak update lands afterwards
		agg.XP = l.buildBreakdown(agg, streak.CurrentStreak, firstToday)

		extended := advanceStreak(streak, now, l.Location)
		if extended {
			if err := l.StreakRepo.Save(tx, streak); err != nil {
				return fmt.Errorf("streak: %w", err)
			}
		}
		agg.CurrentStreak = streak.CurrentStreak
		agg.LongestStreak = streak.LongestStreak
		agg.StreakExtended = extended

		perfectDay, err := l.checkPerfectDay(tx, session, mode, agg.TotalTurns, today)
		if err != nil {
			return fmt.Errorf("perfect-day: %w", err)
		}
		if perfectDay {
			agg.XP.PerfectDayBonus = l.XPCfg.PerfectDayBonus
		}

		if err := l.updateMastery(tx, session.UserID, mode, evals); err != nil {
			return fmt.Errorf("mastery: %w", err)
		}

		awarded, err := l.awardBadges(tx, session, agg, streak, perfectDay, now)
		if err != nil {
			return fmt.Errorf("badges: %w", err)
		}
		agg.BadgesAwarded = awarded
		agg.XP.BadgeXP = len(awarded) * l.XPCfg.BadgeXP

		agg.XP.Total = agg.XP.Base + agg.XP.AccuracyBonus + agg.XP.SpeedBonus +
			agg.XP.StreakBonus + agg.XP.PerfectScore + agg.XP.FirstOfDay +
			agg.XP.PerfectDayBonus + agg.XP.BadgeXP

		if err := l.writeLedger(tx, session, agg, awarded, now); err != nil {
			return fmt.Errorf("ledger entries: %w", err)
		}

		summary := &model.SessionSummary{
			SessionID: session.ID,
			UserID:    session.UserID,
			Summary:   *agg,
		}
		if err := l.SummaryRepo.Create(tx, summary); err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		return nil
	})
	if err != nil {
		// a concurrent close that beat us to the unique summary index
		if existing, serr := l.SummaryRepo.FindBySession(session.ID); serr == nil {
			return &existing.Summary, nil
		}
		return nil, err
	}

	logger.Log.Info("session settled",
		zap.String("sessionId", session.ID),
		zap.Uint("userId", session.UserID),
		zap.Int("xp", agg.XP.Total),
		zap.Int("streak", agg.CurrentStreak))
	return agg, nil
}

func (l *LedgerService) lock(ctx context.Context, userID uint) error {
	for attempt := 0; attempt < ledgerLockAttempts; attempt++ {
		ok, err := l.Cache.AcquireLedgerLock(ctx, userID, ledgerLockTTL)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ledgerLockBackoff << attempt):
		}
	}
	return util.ErrLedgerLocked
}

// advanceStreak applies one day of activity to the streak in place and
// reports whether it moved. Same-day activity is a no-op; a gap longer
// than one day resets the run to 1. LongestStreak never decreases.
func advanceStreak(streak *model.Streak, now time.Time, loc *time.Location) bool {
	today := DayStart(now, loc)
	last := DayStart(streak.LastActiveDate, loc)

	switch {
	case streak.LastActiveDate.IsZero():
		streak.CurrentStreak = 1
	case last.Equal(today):
		return false
	case last.Equal(today.AddDate(0, 0, -1)):
		streak.CurrentStreak++
	default:
		streak.CurrentStreak = 1
	}

	streak.LastActiveDate = today
	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	return true
}

func (l *LedgerService) isFirstSessionToday(tx *gorm.DB, session *model.Session, today time.Time) (bool, error) {
	count, err := l.SessionRepo.CountClosedSince(tx, session.UserID, today, session.ID)
	return count == 0, err
}

// buildBreakdown computes the session's XP components. priorStreak is the
// user's streak count before this session touches it.
func (l *LedgerService) buildBreakdown(agg *model.SummaryData, priorStreak int, firstToday bool) model.XPBreakdown {
	var xp model.XPBreakdown
	if agg.TotalTurns == 0 {
		return xp
	}

	xp.Base = l.XPCfg.BaseSessionXP

	if agg.ScoredTurns > 0 {
		if float64(agg.AccuracyPct) >= l.XPCfg.AccuracyBonusThreshold*100 {
			xp.AccuracyBonus = l.XPCfg.AccuracyBonusXP
		}
		if agg.AccuracyPct == 100 {
			xp.PerfectScore = l.XPCfg.PerfectScoreBonus
		}
	}

	expected := int(l.ExpectedDuration.Seconds())
	if expected > 0 && agg.DurationSeconds > 0 && agg.DurationSeconds < expected {
		saved := float64(expected-agg.DurationSeconds) / float64(expected)
		bonus := int(saved * float64(l.XPCfg.SpeedBonusMax))
		if bonus > l.XPCfg.SpeedBonusMax {
			bonus = l.XPCfg.SpeedBonusMax
		}
		xp.SpeedBonus = bonus
	}

	if priorStreak > 0 {
		bonus := priorStreak * l.XPCfg.StreakBonusPerDay
		if bonus > l.XPCfg.StreakBonusMax {
			bonus = l.XPCfg.StreakBonusMax
		}
		xp.StreakBonus = bonus
	}

	if firstToday {
		xp.FirstOfDay = l.XPCfg.FirstSessionBonus
	}

	return xp
}

// checkPerfectDay reports whether this session completes the required
// modality set for the day, and only on the session that completes it.
func (l *LedgerService) checkPerfectDay(tx *gorm.DB, session *model.Session, mode *model.TeachingMode, totalTurns int, today time.Time) (bool, error) {
	if len(l.XPCfg.RequiredModalities) == 0 || totalTurns == 0 {
		return false, nil
	}

	practiced, err := l.SessionRepo.PracticedModalities(tx, session.UserID, today, session.ID)
	if err != nil {
		return false, err
	}

	before := make(map[string]bool, len(practiced))
	for _, m := range practiced {
		before[m] = true
	}

	completeBefore := true
	for _, required := range l.XPCfg.RequiredModalities {
		if !before[required] {
			completeBefore = false
			break
		}
	}
	if completeBefore {
		return false, nil
	}

	before[mode.Modality] = true
	for _, required := range l.XPCfg.RequiredModalities {
		if !before[required] {
			return false, nil
		}
	}
	return true, nil
}

// updateMastery folds this session's evaluations into the per-skill
// mastery rows. A competency attempt counts as correct at 70% of the scale.
func (l *LedgerService) updateMastery(tx *gorm.DB, userID uint, mode *model.TeachingMode, evals []model.Evaluation) error {
	if len(evals) == 0 {
		return nil
	}

	threshold := mode.ScaleMin + 0.7*(mode.ScaleMax-mode.ScaleMin)
	attempts := map[string]int{}
	correct := map[string]int{}
	for _, e := range evals {
		for skill, v := range e.Metrics {
			attempts[skill]++
			if v >= threshold {
				correct[skill]++
			}
		}
	}

	for skill, n := range attempts {
		if err := l.MasteryRepo.Upsert(tx, userID, mode.Modality, skill, n, correct[skill]); err != nil {
			return err
		}
	}
	return nil
}

func (l *LedgerService) awardBadges(tx *gorm.DB, session *model.Session, agg *model.SummaryData, streak *model.Streak, perfectDay bool, now time.Time) ([]string, error) {
	var candidates []string

	for _, b := range []struct {
		key       string
		threshold int
	}{
		{"streak_3", 3}, {"streak_7", 7}, {"streak_30", 30},
	} {
		if streak.CurrentStreak >= b.threshold {
			candidates = append(candidates, b.key)
		}
	}

	if agg.ScoredTurns > 0 && agg.AccuracyPct >= 80 {
		consecutive, err := l.recentAccuracyHigh(tx, session.UserID, 2)
		if err != nil {
			return nil, err
		}
		if consecutive {
			candidates = append(candidates, "accuracy_master_80")
		}
	}

	if perfectDay {
		candidates = append(candidates, "perfect_day")
	}

	scoredTotal, err := l.EvalRepo.CountByUser(tx, session.UserID)
	if err != nil {
		return nil, err
	}
	if scoredTotal >= 100 {
		candidates = append(candidates, "centurion")
	}

	var awarded []string
	for _, key := range candidates {
		isNew, err := l.BadgeRepo.Award(tx, &model.UserBadge{
			UserID:   session.UserID,
			BadgeKey: key,
			Title:    badgeTitles[key],
			EarnedAt: now,
		})
		if err != nil {
			return nil, err
		}
		if isNew {
			awarded = append(awarded, key)
		}
	}
	return awarded, nil
}

// recentAccuracyHigh checks the user's previous n session summaries all
// reached 80% accuracy.
func (l *LedgerService) recentAccuracyHigh(tx *gorm.DB, userID uint, n int) (bool, error) {
	summaries, err := l.SummaryRepo.ListRecentByUser(tx, userID, n)
	if err != nil {
		return false, err
	}
	if len(summaries) < n {
		return false, nil
	}
	for _, s := range summaries {
		if s.Summary.ScoredTurns == 0 || s.Summary.AccuracyPct < 80 {
			return false, nil
		}
	}
	return true, nil
}

func (l *LedgerService) writeLedger(tx *gorm.DB, session *model.Session, agg *model.SummaryData, badges []string, now time.Time) error {
	sid := session.ID
	var entries []model.XPLedgerEntry

	add := func(amount int, source model.XPSource) {
		if amount > 0 {
			entries = append(entries, model.XPLedgerEntry{
				UserID:     session.UserID,
				Amount:     amount,
				Source:     source,
				SessionID:  &sid,
				OccurredAt: now,
			})
		}
	}

	add(agg.XP.Base, model.XPSourceSession)
	add(agg.XP.AccuracyBonus, model.XPSourceAccuracyBonus)
	add(agg.XP.SpeedBonus, model.XPSourceSpeedBonus)
	add(agg.XP.StreakBonus, model.XPSourceStreakBonus)
	add(agg.XP.PerfectScore, model.XPSourcePerfectScore)
	add(agg.XP.FirstOfDay, model.XPSourceFirstSession)
	add(agg.XP.PerfectDayBonus, model.XPSourcePerfectDay)
	for range badges {
		add(l.XPCfg.BadgeXP, model.XPSourceBadge)
	}

	return l.XPRepo.CreateBatch(tx, entries)
}
