package service

import (
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/repository"
)

var levelNames = []string{"Beginner", "Intermediate", "Advanced", "Expert", "Master"}

// ProgressService is the read side of the ledger: XP totals, level,
// streak, mastery and badges.
type ProgressService struct {
	XPRepo      *repository.XPRepository
	StreakRepo  *repository.StreakRepository
	MasteryRepo *repository.SkillMasteryRepository
	BadgeRepo   *repository.BadgeRepository

	XPCfg    config.XPConfig
	Clock    Clock
	Location *time.Location
}

type XPSummary struct {
	TotalXP       int64   `json:"totalXp"`
	TodayXP       int64   `json:"todayXp"`
	DailyGoal     int     `json:"dailyGoal"`
	GoalReached   bool    `json:"goalReached"`
	Level         int     `json:"level"`
	LevelName     string  `json:"levelName"`
	LevelProgress float64 `json:"levelProgress"`
	NextLevelXP   int64   `json:"nextLevelXp"`
}

func (p *ProgressService) GetXPSummary(userID uint) (*XPSummary, error) {
	total, err := p.XPRepo.TotalByUser(userID)
	if err != nil {
		return nil, err
	}

	now := p.Clock.Now().In(p.Location)
	today := DayStart(now, p.Location)
	todayXP, err := p.XPRepo.TotalByUserBetween(userID, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	level, intoLevel, levelSpan := levelFor(total)

	summary := &XPSummary{
		TotalXP:     total,
		TodayXP:     todayXP,
		DailyGoal:   p.XPCfg.DailyXPGoal,
		GoalReached: todayXP >= int64(p.XPCfg.DailyXPGoal),
		Level:       level,
		LevelName:   levelName(level),
		NextLevelXP: levelSpan - intoLevel,
	}
	if levelSpan > 0 {
		summary.LevelProgress = float64(intoLevel) / float64(levelSpan)
	}
	return summary, nil
}

// levelFor walks the level curve: advancing out of level n costs
// 100 * 1.5^(n-1) XP. Returns the level, XP accumulated inside it, and the
// XP the level spans.
func levelFor(total int64) (level int, intoLevel, levelSpan int64) {
	level = 1
	remaining := total
	cost := int64(100)
	for remaining >= cost {
		remaining -= cost
		level++
		cost = cost * 3 / 2
	}
	return level, remaining, cost
}

func levelName(level int) string {
	idx := (level - 1) / 5
	if idx >= len(levelNames) {
		idx = len(levelNames) - 1
	}
	return levelNames[idx]
}

type StreakInfo struct {
	CurrentStreak int  `json:"currentStreak"`
	LongestStreak int  `json:"longestStreak"`
	ActiveToday   bool `json:"activeToday"`
}

func (p *ProgressService) GetStreak(userID uint) (*StreakInfo, error) {
	streak, err := p.StreakRepo.FindByUser(nil, userID)
	if err != nil {
		// no activity yet is a zero streak, not an error
		return &StreakInfo{}, nil
	}

	now := p.Clock.Now().In(p.Location)
	return &StreakInfo{
		CurrentStreak: streak.CurrentStreak,
		LongestStreak: streak.LongestStreak,
		ActiveToday:   SameDay(streak.LastActiveDate, now, p.Location),
	}, nil
}

func (p *ProgressService) GetMastery(userID uint) ([]model.SkillMastery, error) {
	return p.MasteryRepo.ListByUser(userID)
}

func (p *ProgressService) GetBadges(userID uint) ([]model.UserBadge, error) {
	return p.BadgeRepo.ListByUser(userID)
}

func (p *ProgressService) GetLedger(userID uint, page, limit int) ([]model.XPLedgerEntry, int64, error) {
	return p.XPRepo.ListByUser(userID, page, limit)
}
