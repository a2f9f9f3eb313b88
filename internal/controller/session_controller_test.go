package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/service"
	"lingua_voice_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type stubSessionStore struct {
	service.SessionStore
	session *model.Session
}

func (s stubSessionStore) FindByID(id string) (*model.Session, error) {
	if s.session == nil || s.session.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.session, nil
}

type stubCache struct {
	service.SessionCacheStore
}

func (stubCache) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return nil, gorm.ErrRecordNotFound
}

func sessionRequest(userID uint) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/sessions/s-1", nil)
	ctx.Params = gin.Params{{Key: "id", Value: "s-1"}}
	if userID != 0 {
		ctx.Set("user", &util.Claims{UserID: userID})
	}
	return ctx, w
}

func TestSessionAccessRestrictedToOwner(t *testing.T) {
	owned := &model.Session{
		UUIDBase: model.UUIDBase{ID: "s-1"},
		UserID:   1,
		State:    model.SessionClosed,
	}
	c := NewSessionController(&service.SessionService{
		SessionRepo: stubSessionStore{session: owned},
		Cache:       stubCache{},
	}, nil)

	t.Run("owner reads their session", func(t *testing.T) {
		ctx, w := sessionRequest(1)
		c.Get(ctx)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other users are rejected", func(t *testing.T) {
		ctx, w := sessionRequest(2)
		c.Get(ctx)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous requests are rejected", func(t *testing.T) {
		ctx, w := sessionRequest(0)
		c.Get(ctx)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
