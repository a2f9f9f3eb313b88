package repository

import (
	"time"

	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	return r.DB.Create(session).Error
}

func (r *SessionRepository) FindByID(id string) (*model.Session, error) {
	var session model.Session
	err := r.DB.Where("id = ?", id).First(&session).Error
	return &session, err
}

func (r *SessionRepository) FindActiveByUser(userID uint) (*model.Session, error) {
	var session model.Session
	err := r.DB.Where("user_id = ? AND state IN ?", userID,
		[]model.SessionState{model.SessionOpening, model.SessionActive, model.SessionClosing}).
		Order("started_at DESC").First(&session).Error
	return &session, err
}

func (r *SessionRepository) ListByUser(userID uint, page, limit int) ([]model.Session, int64, error) {
	var sessions []model.Session
	var total int64

	query := r.DB.Model(&model.Session{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("started_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}

// UpdateState persists a state change only if the session is still in fromState.
// Returns gorm.ErrRecordNotFound when the guard fails, so races surface as errors.
func (r *SessionRepository) UpdateState(id string, fromState, toState model.SessionState) error {
	res := r.DB.Model(&model.Session{}).
		Where("id = ? AND state = ?", id, fromState).
		Update("state", toState)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SessionRepository) MarkClosed(id string, closedAt time.Time, turnCount int, droppedFrames int64) error {
	return r.DB.Model(&model.Session{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":          model.SessionClosed,
			"closed_at":      closedAt,
			"turn_count":     turnCount,
			"dropped_frames": droppedFrames,
		}).Error
}

func (r *SessionRepository) MarkExpired(id string, closedAt time.Time) error {
	return r.DB.Model(&model.Session{}).
		Where("id = ? AND state NOT IN ?", id,
			[]model.SessionState{model.SessionClosed, model.SessionExpired}).
		Updates(map[string]interface{}{
			"state":     model.SessionExpired,
			"closed_at": closedAt,
		}).Error
}

func (r *SessionRepository) CountClosedByUser(userID uint) (int64, error) {
	var total int64
	err := r.DB.Model(&model.Session{}).
		Where("user_id = ? AND state = ?", userID, model.SessionClosed).
		Count(&total).Error
	return total, err
}

func (r *SessionRepository) CountClosedByUserSince(userID uint, since time.Time) (int64, error) {
	var total int64
	err := r.DB.Model(&model.Session{}).
		Where("user_id = ? AND state = ? AND closed_at >= ?", userID, model.SessionClosed, since).
		Count(&total).Error
	return total, err
}

// CountClosedSince counts the user's closed sessions since the given instant,
// excluding one session id. Used for the first-session-of-day check.
func (r *SessionRepository) CountClosedSince(tx *gorm.DB, userID uint, since time.Time, excludeID string) (int64, error) {
	if tx == nil {
		tx = r.DB
	}
	var total int64
	err := tx.Model(&model.Session{}).
		Where("user_id = ? AND state = ? AND closed_at >= ? AND id <> ?",
			userID, model.SessionClosed, since, excludeID).
		Count(&total).Error
	return total, err
}

// PracticedModalities lists the distinct teaching-mode modalities of the
// user's closed sessions since the given instant, excluding one session id.
func (r *SessionRepository) PracticedModalities(tx *gorm.DB, userID uint, since time.Time, excludeID string) ([]string, error) {
	if tx == nil {
		tx = r.DB
	}
	var modalities []string
	err := tx.Raw(`SELECT DISTINCT tm.modality
		FROM sessions s JOIN teaching_modes tm ON tm.code = s.mode_code
		WHERE s.user_id = ? AND s.state = ? AND s.closed_at >= ? AND s.id <> ?`,
		userID, model.SessionClosed, since, excludeID).Scan(&modalities).Error
	return modalities, err
}
