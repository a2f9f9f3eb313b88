package controller

import (
	"errors"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/repository"
	"lingua_voice_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthController struct {
	Users  *repository.UserRepository
	JWTCfg config.JWTConfig
}

func NewAuthController(users *repository.UserRepository, jwtCfg config.JWTConfig) *AuthController {
	return &AuthController{Users: users, JWTCfg: jwtCfg}
}

type registerRequest struct {
	ExternalID string `json:"externalId" binding:"required"`
	Name       string `json:"name"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "account"
// @Success 201 {object} util.Response
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if _, err := c.Users.FindByExternalID(req.ExternalID); err == nil {
		util.Conflict(ctx, "account already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	user := &model.User{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Email:      req.Email,
		Password:   string(hash),
	}
	if err := c.Users.Create(user); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	token, err := util.GenerateJWT(user, c.JWTCfg.Secret, c.JWTCfg.ExpireTime)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, tokenResponse{Token: token, User: user})
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "credentials"
// @Success 200 {object} util.Response
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.Users.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Unauthorized(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		util.Unauthorized(ctx)
		return
	}

	c.Users.TouchLastLogin(user.ID)

	token, err := util.GenerateJWT(user, c.JWTCfg.Secret, c.JWTCfg.ExpireTime)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, tokenResponse{Token: token, User: user})
}
