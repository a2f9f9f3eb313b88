package controller

import (
	"lingua_voice_backend/internal/service"
	"lingua_voice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Progress *service.ProgressService
}

func NewProgressController(progress *service.ProgressService) *ProgressController {
	return &ProgressController{Progress: progress}
}

// @Summary XP summary
// @Description Total and today's XP, level, and progress toward the next level
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/xp [get]
func (c *ProgressController) GetXP(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	summary, err := c.Progress.GetXPSummary(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary Streak
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/streak [get]
func (c *ProgressController) GetStreak(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	streak, err := c.Progress.GetStreak(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, streak)
}

// @Summary Skill mastery
// @Description Per-modality mastery records accumulated from scored turns
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/mastery [get]
func (c *ProgressController) GetMastery(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	mastery, err := c.Progress.GetMastery(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, mastery)
}

// @Summary Badges
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/badges [get]
func (c *ProgressController) GetBadges(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	badges, err := c.Progress.GetBadges(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, badges)
}

// @Summary XP ledger entries
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Param page query int false "page"
// @Param limit query int false "limit"
// @Success 200 {object} util.Response
// @Router /api/progress/ledger [get]
func (c *ProgressController) GetLedger(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := pagination(ctx)
	entries, total, err := c.Progress.GetLedger(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  entries,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
