package controller

import (
	"errors"
	"strconv"

	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/service"
	"lingua_voice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	Sessions *service.SessionService
	Hub      *service.SessionHub
}

func NewSessionController(sessions *service.SessionService, hub *service.SessionHub) *SessionController {
	return &SessionController{Sessions: sessions, Hub: hub}
}

// @Summary Voice session socket
// @Description Upgrades to a WebSocket carrying the voice session protocol
// @Tags sessions
// @Router /ws/voice [get]
func (c *SessionController) ServeWS(ctx *gin.Context) {
	c.Hub.HandleWS(ctx)
}

type openSessionRequest struct {
	ExternalID     string `json:"externalId" binding:"required"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Mode           string `json:"mode" binding:"required"`
	Language       string `json:"language" binding:"required"`
	MotherLanguage string `json:"motherLanguage"`
}

// @Summary Open a session
// @Description Creates a session in the opening state without a socket; used by clients that attach audio later
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body openSessionRequest true "session parameters"
// @Success 201 {object} util.Response
// @Router /api/sessions [post]
func (c *SessionController) Open(ctx *gin.Context) {
	var req openSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, _, _, err := c.Sessions.Open(ctx.Request.Context(), service.OpenSessionInput{
		ExternalID:     req.ExternalID,
		Name:           req.Name,
		Email:          req.Email,
		ModeCode:       req.Mode,
		LanguageCode:   req.Language,
		MotherLanguage: req.MotherLanguage,
	})
	if err != nil {
		mapSessionError(ctx, err)
		return
	}

	util.Created(ctx, session)
}

// ownedSession loads the session in the id path param and rejects callers
// that do not own it.
func (c *SessionController) ownedSession(ctx *gin.Context) (*model.Session, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	session, err := c.Sessions.GetSession(ctx.Param("id"))
	if err != nil {
		mapSessionError(ctx, err)
		return nil, false
	}
	if session.UserID != user.UserID {
		mapSessionError(ctx, util.ErrPermissionDenied)
		return nil, false
	}
	return session, true
}

// @Summary Close a session
// @Description Settles the session and returns its summary; repeated calls return the same summary
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/close [post]
func (c *SessionController) Close(ctx *gin.Context) {
	session, ok := c.ownedSession(ctx)
	if !ok {
		return
	}
	summary, err := c.Sessions.Close(ctx.Request.Context(), session.ID, nil, 0)
	if err != nil {
		mapSessionError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary Get a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id} [get]
func (c *SessionController) Get(ctx *gin.Context) {
	session, ok := c.ownedSession(ctx)
	if !ok {
		return
	}
	util.Success(ctx, session)
}

// @Summary Get a session summary
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/summary [get]
func (c *SessionController) GetSummary(ctx *gin.Context) {
	session, ok := c.ownedSession(ctx)
	if !ok {
		return
	}
	summary, err := c.Sessions.GetSummary(session.ID)
	if err != nil {
		mapSessionError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary List session turns
// @Description Returns the role-attributed transcript in dense turn order
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/turns [get]
func (c *SessionController) GetTurns(ctx *gin.Context) {
	session, ok := c.ownedSession(ctx)
	if !ok {
		return
	}
	turns, err := c.Sessions.GetTurns(session.ID)
	if err != nil {
		mapSessionError(ctx, err)
		return
	}
	util.Success(ctx, turns)
}

// @Summary List sessions for the authenticated user
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param page query int false "page"
// @Param limit query int false "limit"
// @Success 200 {object} util.Response
// @Router /api/sessions [get]
func (c *SessionController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := pagination(ctx)
	sessions, total, err := c.Sessions.ListSessions(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  sessions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func pagination(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func mapSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound), errors.Is(err, util.ErrSummaryNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrModeNotFound), errors.Is(err, util.ErrLanguageNotFound),
		errors.Is(err, util.ErrInvalidRubric):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrActiveSessionOpen), errors.Is(err, util.ErrInvalidTransition),
		errors.Is(err, util.ErrSessionExpired), errors.Is(err, util.ErrLedgerLocked):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
