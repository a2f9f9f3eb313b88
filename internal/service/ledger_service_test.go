package service

import (
	"context"
	"testing"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testXPConfig() config.XPConfig {
	return config.XPConfig{
		BaseSessionXP:          20,
		AccuracyBonusThreshold: 0.80,
		AccuracyBonusXP:        10,
		PerfectScoreBonus:      25,
		FirstSessionBonus:      15,
		SpeedBonusMax:          10,
		StreakBonusPerDay:      2,
		StreakBonusMax:         30,
		PerfectDayBonus:        50,
		BadgeXP:                50,
		DailyXPGoal:            100,
		PassMark:               60,
		RequiredModalities:     []string{"speaking", "listening", "grammar"},
	}
}

func testLedger() *LedgerService {
	return &LedgerService{
		XPCfg:            testXPConfig(),
		ExpectedDuration: 10 * time.Minute,
		Location:         time.UTC,
	}
}

func TestBreakdownFullScenario(t *testing.T) {
	l := testLedger()

	// 10-day streak going in, 95% accuracy, first session of the day,
	// finished 25% faster than expected
	agg := &model.SummaryData{
		TotalTurns:      12,
		ScoredTurns:     20,
		CorrectTurns:    19,
		AccuracyPct:     95,
		AverageScore:    85,
		DurationSeconds: 450,
	}

	xp := l.buildBreakdown(agg, 10, true)

	assert.Equal(t, 20, xp.Base)
	assert.Equal(t, 10, xp.AccuracyBonus)
	assert.Equal(t, 2, xp.SpeedBonus)
	assert.Equal(t, 20, xp.StreakBonus)
	assert.Equal(t, 15, xp.FirstOfDay)
	assert.Equal(t, 0, xp.PerfectScore)

	sum := xp.Base + xp.AccuracyBonus + xp.SpeedBonus + xp.StreakBonus + xp.FirstOfDay
	assert.Equal(t, 67, sum)
}

func TestBreakdownEmptySessionEarnsNothing(t *testing.T) {
	l := testLedger()

	xp := l.buildBreakdown(&model.SummaryData{}, 5, true)

	assert.Equal(t, model.XPBreakdown{}, xp)
}

func TestBreakdownStreakBonusUsesPriorStreak(t *testing.T) {
	l := testLedger()

	agg := &model.SummaryData{TotalTurns: 4, ScoredTurns: 2, AccuracyPct: 50, DurationSeconds: 700}

	// the bonus pays on the streak as it stood before the session, not the
	// post-extension count
	xp := l.buildBreakdown(agg, 10, true)
	assert.Equal(t, 20, xp.StreakBonus)

	// a second session on the same day still pays the standing streak
	xp = l.buildBreakdown(agg, 10, false)
	assert.Equal(t, 20, xp.StreakBonus)

	// no standing streak, no bonus
	xp = l.buildBreakdown(agg, 0, true)
	assert.Equal(t, 0, xp.StreakBonus)
}

func TestBreakdownPerfectScore(t *testing.T) {
	l := testLedger()

	agg := &model.SummaryData{
		TotalTurns:   6,
		ScoredTurns:  3,
		CorrectTurns: 3,
		AccuracyPct:  100,
		AverageScore: 100,
	}

	xp := l.buildBreakdown(agg, 0, false)

	assert.Equal(t, 25, xp.PerfectScore)
	assert.Equal(t, 10, xp.AccuracyBonus)
	assert.Equal(t, 0, xp.StreakBonus)
	assert.Equal(t, 0, xp.FirstOfDay)
}

func TestBreakdownPerfectScoreIgnoresAverage(t *testing.T) {
	l := testLedger()

	// every scored turn passed, but with middling totals; the bonus keys
	// off accuracy alone
	agg := &model.SummaryData{
		TotalTurns:   8,
		ScoredTurns:  4,
		CorrectTurns: 4,
		AccuracyPct:  100,
		AverageScore: 85,
	}

	xp := l.buildBreakdown(agg, 0, false)

	assert.Equal(t, 25, xp.PerfectScore)
}

func TestBreakdownStreakBonusCapped(t *testing.T) {
	l := testLedger()

	agg := &model.SummaryData{TotalTurns: 4, ScoredTurns: 2, AccuracyPct: 50, DurationSeconds: 700}
	xp := l.buildBreakdown(agg, 40, true)

	assert.Equal(t, 30, xp.StreakBonus)
	assert.Equal(t, 0, xp.SpeedBonus)
	assert.Equal(t, 0, xp.AccuracyBonus)
}

func TestBreakdownSpeedBonusCapped(t *testing.T) {
	l := testLedger()

	// near-instant session cannot exceed the cap
	agg := &model.SummaryData{TotalTurns: 2, ScoredTurns: 1, AccuracyPct: 0, DurationSeconds: 1}
	xp := l.buildBreakdown(agg, 0, false)

	assert.LessOrEqual(t, xp.SpeedBonus, 10)
	assert.Greater(t, xp.SpeedBonus, 0)
}

type ledgerFixture struct {
	ledger    *LedgerService
	sessions  *fakeSessionStore
	streaks   *fakeStreakStore
	summaries *fakeSummaryStore
	xp        *fakeXPStore
	badges    *fakeBadgeStore
	clock     *fakeClock
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		sessions:  newFakeSessionStore(),
		streaks:   &fakeStreakStore{},
		summaries: newFakeSummaryStore(),
		xp:        &fakeXPStore{},
		badges:    &fakeBadgeStore{},
		clock:     &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	f.ledger = &LedgerService{
		DB:               fakeTx{},
		XPRepo:           f.xp,
		StreakRepo:       f.streaks,
		MasteryRepo:      &fakeMasteryStore{},
		BadgeRepo:        f.badges,
		SummaryRepo:      f.summaries,
		SessionRepo:      f.sessions,
		EvalRepo:         &fakeEvalStore{},
		Cache:            &fakeLocker{},
		XPCfg:            testXPConfig(),
		ExpectedDuration: 10 * time.Minute,
		Clock:            f.clock,
		Location:         time.UTC,
	}
	return f
}

func settleSession() *model.Session {
	return &model.Session{
		UUIDBase:     model.UUIDBase{ID: "s-1"},
		UserID:       1,
		ModeCode:     "conversation",
		LanguageCode: "es",
		State:        model.SessionClosing,
	}
}

func TestSettleStreakBonusPaysBeforeExtension(t *testing.T) {
	f := newLedgerFixture()
	f.streaks.streak = &model.Streak{
		UserID:         1,
		CurrentStreak:  10,
		LongestStreak:  10,
		LastActiveDate: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}

	agg := &model.SummaryData{TotalTurns: 6, ScoredTurns: 4, CorrectTurns: 3, AccuracyPct: 75, DurationSeconds: 700}
	got, err := f.ledger.Settle(context.Background(), settleSession(), testMode(), agg, nil)
	require.NoError(t, err)

	// paid on the 10-day streak standing at settle time, while the summary
	// reports the extended count
	assert.Equal(t, 20, got.XP.StreakBonus)
	assert.Equal(t, 11, got.CurrentStreak)
	assert.True(t, got.StreakExtended)
	assert.Equal(t, 15, got.XP.FirstOfDay)

	bySource := f.xp.entriesBySource()
	assert.Equal(t, 20, bySource[model.XPSourceStreakBonus])
}

func TestSettleSameDaySessionStillPaysStreakBonus(t *testing.T) {
	f := newLedgerFixture()
	f.streaks.streak = &model.Streak{
		UserID:         1,
		CurrentStreak:  10,
		LongestStreak:  12,
		LastActiveDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	f.sessions.closed = 1 // an earlier session already closed today
	f.badges.earned = map[string]bool{"streak_3": true, "streak_7": true}

	agg := &model.SummaryData{TotalTurns: 6, ScoredTurns: 4, CorrectTurns: 3, AccuracyPct: 75, DurationSeconds: 700}
	got, err := f.ledger.Settle(context.Background(), settleSession(), testMode(), agg, nil)
	require.NoError(t, err)

	assert.Equal(t, 20, got.XP.StreakBonus)
	assert.Equal(t, 0, got.XP.FirstOfDay)
	assert.False(t, got.StreakExtended)
	assert.Equal(t, 10, got.CurrentStreak)
	assert.Equal(t, 40, got.XP.Total) // base 20 + streak 20
}

func TestSettleTwiceWritesOneLedgerBatch(t *testing.T) {
	f := newLedgerFixture()
	session := settleSession()

	agg := &model.SummaryData{TotalTurns: 4, ScoredTurns: 2, CorrectTurns: 2, AccuracyPct: 100, DurationSeconds: 500}
	first, err := f.ledger.Settle(context.Background(), session, testMode(), agg, nil)
	require.NoError(t, err)

	again := &model.SummaryData{TotalTurns: 4, ScoredTurns: 2, CorrectTurns: 2, AccuracyPct: 100, DurationSeconds: 500}
	second, err := f.ledger.Settle(context.Background(), session, testMode(), again, nil)
	require.NoError(t, err)

	assert.Equal(t, first.XP, second.XP)
	assert.Equal(t, 1, f.summaries.creates)
	assert.Len(t, f.xp.batches, 1)
}

func TestSettlePerfectDayOnCompletingSessionOnly(t *testing.T) {
	t.Run("completing session earns the bonus", func(t *testing.T) {
		f := newLedgerFixture()
		f.sessions.practiced = []string{"listening", "grammar"}

		agg := &model.SummaryData{TotalTurns: 4, ScoredTurns: 2, CorrectTurns: 1, AccuracyPct: 50, DurationSeconds: 700}
		got, err := f.ledger.Settle(context.Background(), settleSession(), testMode(), agg, nil)
		require.NoError(t, err)

		assert.Equal(t, 50, got.XP.PerfectDayBonus)
		assert.Contains(t, got.BadgesAwarded, "perfect_day")
		assert.Equal(t, 50, f.xp.entriesBySource()[model.XPSourcePerfectDay])
	})

	t.Run("already complete before this session", func(t *testing.T) {
		f := newLedgerFixture()
		f.sessions.practiced = []string{"speaking", "listening", "grammar"}
		f.badges.earned = map[string]bool{"perfect_day": true}

		agg := &model.SummaryData{TotalTurns: 4, ScoredTurns: 2, CorrectTurns: 1, AccuracyPct: 50, DurationSeconds: 700}
		got, err := f.ledger.Settle(context.Background(), settleSession(), testMode(), agg, nil)
		require.NoError(t, err)

		assert.Equal(t, 0, got.XP.PerfectDayBonus)
		assert.Zero(t, f.xp.entriesBySource()[model.XPSourcePerfectDay])
	})
}

func TestAdvanceStreakFirstEver(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	streak := &model.Streak{}

	extended := advanceStreak(streak, now, time.UTC)

	assert.True(t, extended)
	assert.Equal(t, 1, streak.CurrentStreak)
	assert.Equal(t, 1, streak.LongestStreak)
	assert.Equal(t, DayStart(now, time.UTC), streak.LastActiveDate)
}

func TestAdvanceStreakSameDayNoop(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	streak := &model.Streak{
		CurrentStreak:  4,
		LongestStreak:  6,
		LastActiveDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	extended := advanceStreak(streak, now, time.UTC)

	assert.False(t, extended)
	assert.Equal(t, 4, streak.CurrentStreak)
	assert.Equal(t, 6, streak.LongestStreak)
}

func TestAdvanceStreakConsecutiveDay(t *testing.T) {
	now := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	streak := &model.Streak{
		CurrentStreak:  4,
		LongestStreak:  4,
		LastActiveDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	extended := advanceStreak(streak, now, time.UTC)

	assert.True(t, extended)
	assert.Equal(t, 5, streak.CurrentStreak)
	assert.Equal(t, 5, streak.LongestStreak)
}

func TestAdvanceStreakGapResets(t *testing.T) {
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	streak := &model.Streak{
		CurrentStreak:  9,
		LongestStreak:  9,
		LastActiveDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	extended := advanceStreak(streak, now, time.UTC)

	assert.True(t, extended)
	assert.Equal(t, 1, streak.CurrentStreak)
	// longest never decreases
	assert.Equal(t, 9, streak.LongestStreak)
}

func TestAdvanceStreakAcrossTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tz database unavailable")
	}

	// 03:00 UTC on the 11th is still the evening of the 10th in New York
	now := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	streak := &model.Streak{
		CurrentStreak:  2,
		LongestStreak:  2,
		LastActiveDate: time.Date(2026, 3, 10, 0, 0, 0, 0, loc),
	}

	extended := advanceStreak(streak, now, loc)

	assert.False(t, extended)
	assert.Equal(t, 2, streak.CurrentStreak)
}
