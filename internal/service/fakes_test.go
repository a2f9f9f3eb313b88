package service

import (
	"context"
	"database/sql"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// In-memory store fakes. The tx handle is nil everywhere; the fakes have no
// transaction semantics and apply writes immediately.

type fakeTx struct{}

func (fakeTx) Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	return fc(nil)
}

type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*model.Session
	practiced []string
	closed    int64
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*model.Session{}}
}

func (f *fakeSessionStore) put(s *model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
}

func (f *fakeSessionStore) Create(session *model.Session) error {
	if session.ID == "" {
		session.ID = model.GenerateUUID()
	}
	f.put(session)
	return nil
}

func (f *fakeSessionStore) FindByID(id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) FindActiveByUser(userID uint) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && !s.State.Terminal() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSessionStore) ListByUser(userID uint, page, limit int) ([]model.Session, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeSessionStore) UpdateState(id string, fromState, toState model.SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.State != fromState {
		return gorm.ErrRecordNotFound
	}
	s.State = toState
	return nil
}

func (f *fakeSessionStore) MarkClosed(id string, closedAt time.Time, turnCount int, droppedFrames int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.State = model.SessionClosed
	s.ClosedAt = &closedAt
	s.TurnCount = turnCount
	s.DroppedFrames = droppedFrames
	return nil
}

func (f *fakeSessionStore) MarkExpired(id string, closedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.State = model.SessionExpired
	s.ClosedAt = &closedAt
	return nil
}

func (f *fakeSessionStore) CountClosedSince(tx *gorm.DB, userID uint, since time.Time, excludeID string) (int64, error) {
	return f.closed, nil
}

func (f *fakeSessionStore) PracticedModalities(tx *gorm.DB, userID uint, since time.Time, excludeID string) ([]string, error) {
	return f.practiced, nil
}

type fakeTurnStore struct {
	mu       sync.Mutex
	turns    []model.Turn
	failNext bool
	nextID   uint
}

func (f *fakeTurnStore) Create(turn *model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return gorm.ErrInvalidDB
	}
	f.nextID++
	turn.ID = f.nextID
	f.turns = append(f.turns, *turn)
	return nil
}

func (f *fakeTurnStore) ListBySession(sessionID string) ([]model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Turn
	for _, t := range f.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnIndex < out[j].TurnIndex })
	return out, nil
}

type fakeEvalStore struct {
	mu        sync.Mutex
	evals     []model.Evaluation
	userTotal int64
}

func (f *fakeEvalStore) Create(eval *model.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals = append(f.evals, *eval)
	return nil
}

func (f *fakeEvalStore) ListBySession(sessionID string) ([]model.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Evaluation
	for _, e := range f.evals {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvalStore) CountByUser(tx *gorm.DB, userID uint) (int64, error) {
	return f.userTotal, nil
}

type fakeSummaryStore struct {
	mu        sync.Mutex
	summaries map[string]*model.SessionSummary
	creates   int
}

func newFakeSummaryStore() *fakeSummaryStore {
	return &fakeSummaryStore{summaries: map[string]*model.SessionSummary{}}
}

func (f *fakeSummaryStore) Create(tx *gorm.DB, summary *model.SessionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.summaries[summary.SessionID]; ok {
		return gorm.ErrDuplicatedKey
	}
	f.creates++
	cp := *summary
	f.summaries[summary.SessionID] = &cp
	return nil
}

func (f *fakeSummaryStore) FindBySession(sessionID string) (*model.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSummaryStore) ListRecentByUser(tx *gorm.DB, userID uint, n int) ([]model.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SessionSummary
	for _, s := range f.summaries {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

type fakeXPStore struct {
	mu      sync.Mutex
	batches [][]model.XPLedgerEntry
}

func (f *fakeXPStore) CreateBatch(tx *gorm.DB, entries []model.XPLedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, entries)
	return nil
}

func (f *fakeXPStore) entriesBySource() map[model.XPSource]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[model.XPSource]int{}
	for _, batch := range f.batches {
		for _, e := range batch {
			out[e.Source] += e.Amount
		}
	}
	return out
}

type fakeStreakStore struct {
	mu     sync.Mutex
	streak *model.Streak
}

func (f *fakeStreakStore) FindByUser(tx *gorm.DB, userID uint) (*model.Streak, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streak == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *f.streak
	return &cp, nil
}

func (f *fakeStreakStore) Save(tx *gorm.DB, streak *model.Streak) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *streak
	f.streak = &cp
	return nil
}

type masteryWrite struct {
	modality, skill   string
	attempts, correct int
}

type fakeMasteryStore struct {
	mu     sync.Mutex
	writes []masteryWrite
}

func (f *fakeMasteryStore) Upsert(tx *gorm.DB, userID uint, modality, skill string, attempts, correct int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, masteryWrite{modality, skill, attempts, correct})
	return nil
}

type fakeBadgeStore struct {
	mu     sync.Mutex
	earned map[string]bool
}

func (f *fakeBadgeStore) Award(tx *gorm.DB, badge *model.UserBadge) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.earned == nil {
		f.earned = map[string]bool{}
	}
	if f.earned[badge.BadgeKey] {
		return false, nil
	}
	f.earned[badge.BadgeKey] = true
	return true, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	next  uint
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*model.User{}}
}

func (f *fakeUserStore) Create(user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	user.ID = f.next
	cp := *user
	f.users[user.ExternalID] = &cp
	return nil
}

func (f *fakeUserStore) FindByExternalID(externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[externalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) TouchLastLogin(id uint) error { return nil }

type fakeModeStore struct {
	modes map[string]*model.TeachingMode
}

func (f *fakeModeStore) FindByCode(code string) (*model.TeachingMode, error) {
	m, ok := f.modes[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (f *fakeModeStore) ListEnabled() ([]model.TeachingMode, error) {
	var out []model.TeachingMode
	for _, m := range f.modes {
		out = append(out, *m)
	}
	return out, nil
}

type fakeLangStore struct{}

func (fakeLangStore) FindByCode(code string) (*model.Language, error) {
	return &model.Language{Code: code}, nil
}

func (fakeLangStore) ListEnabled() ([]model.Language, error) {
	return []model.Language{{Code: "es"}}, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[uint]bool
}

func (f *fakeLocker) AcquireLedgerLock(ctx context.Context, userID uint, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[uint]bool{}
	}
	if f.held[userID] {
		return false, nil
	}
	f.held[userID] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLedgerLock(ctx context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, userID)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	records map[string]*model.Session
	active  map[uint]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{records: map[string]*model.Session{}, active: map[uint]string{}}
}

func (f *fakeCache) PutSession(ctx context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.records[session.ID] = &cp
	return nil
}

func (f *fakeCache) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.records[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeCache) Touch(ctx context.Context, sessionID string) error { return nil }

func (f *fakeCache) RemoveSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, sessionID)
	return nil
}

func (f *fakeCache) LiveSessionIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.records {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeCache) ClaimActive(ctx context.Context, userID uint, sessionID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if held, ok := f.active[userID]; ok && held != sessionID {
		return false, nil
	}
	f.active[userID] = sessionID
	return true, nil
}

func (f *fakeCache) ReleaseActive(ctx context.Context, userID uint, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[userID] == sessionID {
		delete(f.active, userID)
	}
	return nil
}
