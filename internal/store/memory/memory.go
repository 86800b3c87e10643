// Package memory implements the store interfaces in process memory.
// Authorization codes and sessions live in TTL'd caches so expired entries
// age out without a sweeper; admins, clients, and the audit trail are plain
// guarded maps. Used by tests and single-node development setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/store"
)

// Store implements store.Store in memory.
type Store struct {
	admins  *adminRepository
	clients *clientRepository
	codes   *authCodeRepository
	session *sessionRepository
	audit   *auditRepository
}

// NewStore creates a new in-memory store. codeTTL and sessionTTL bound how
// long entries survive in the underlying caches; repository methods still
// check expiry explicitly so the caches are a backstop, not the contract.
func NewStore(codeTTL, sessionTTL time.Duration) *Store {
	return &Store{
		admins:  &adminRepository{byID: map[string]*domain.Admin{}},
		clients: &clientRepository{byID: map[string]*domain.Client{}},
		codes: &authCodeRepository{
			cache: gocache.New(codeTTL, time.Minute),
		},
		session: &sessionRepository{
			cache: gocache.New(sessionTTL, time.Minute),
		},
		audit: &auditRepository{},
	}
}

func (s *Store) Admins() store.AdminRepository       { return s.admins }
func (s *Store) Clients() store.ClientRepository     { return s.clients }
func (s *Store) AuthCodes() store.AuthCodeRepository { return s.codes }
func (s *Store) Sessions() store.SessionRepository   { return s.session }
func (s *Store) Audit() store.AuditRepository        { return s.audit }
func (s *Store) Close() error                        { return nil }

// Admin repository

type adminRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Admin
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[admin.ID]; ok {
		return agerrors.AlreadyExists("admin", admin.ID)
	}
	for _, a := range r.byID {
		if a.Email == admin.Email {
			return agerrors.AlreadyExists("admin with email", admin.Email)
		}
	}

	now := time.Now()
	admin.CreatedAt = now
	admin.UpdatedAt = now
	cp := *admin
	r.byID[admin.ID] = &cp
	return nil
}

func (r *adminRepository) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, agerrors.NotFound("admin", id)
	}
	cp := *a
	return &cp, nil
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, agerrors.NotFound("admin", email)
}

func (r *adminRepository) Update(ctx context.Context, admin *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[admin.ID]; !ok {
		return agerrors.NotFound("admin", admin.ID)
	}
	admin.UpdatedAt = time.Now()
	cp := *admin
	r.byID[admin.ID] = &cp
	return nil
}

func (r *adminRepository) List(ctx context.Context) ([]*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	admins := make([]*domain.Admin, 0, len(r.byID))
	for _, a := range r.byID {
		cp := *a
		admins = append(admins, &cp)
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].Email < admins[j].Email })
	return admins, nil
}

// Client repository

type clientRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Client
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[client.ID]; ok {
		return agerrors.AlreadyExists("client", client.ID)
	}
	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now
	cp := *client
	r.byID[client.ID] = &cp
	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, agerrors.NotFound("client", id)
	}
	cp := *c
	return &cp, nil
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[client.ID]; !ok {
		return agerrors.NotFound("client", client.ID)
	}
	client.UpdatedAt = time.Now()
	cp := *client
	r.byID[client.ID] = &cp
	return nil
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return agerrors.NotFound("client", id)
	}
	delete(r.byID, id)
	return nil
}

func (r *clientRepository) List(ctx context.Context) ([]*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*domain.Client, 0, len(r.byID))
	for _, c := range r.byID {
		cp := *c
		clients = append(clients, &cp)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients, nil
}

// AuthCode repository

type authCodeRepository struct {
	mu    sync.Mutex // guards the check-and-set in Consume
	cache *gocache.Cache
}

func (r *authCodeRepository) Create(ctx context.Context, code *domain.AuthCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cache.Get(code.Code); ok {
		return agerrors.AlreadyExists("auth code", code.Code)
	}
	cp := *code
	r.cache.Set(code.Code, &cp, time.Until(code.ExpiresAt))
	return nil
}

func (r *authCodeRepository) GetByCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(code)
	if !ok {
		return nil, agerrors.NotFound("auth code", code)
	}
	cp := *v.(*domain.AuthCode)
	return &cp, nil
}

func (r *authCodeRepository) Consume(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(code)
	if !ok {
		return agerrors.NotFound("auth code", code)
	}
	ac := v.(*domain.AuthCode)
	if ac.Used {
		return agerrors.NotFound("auth code", code)
	}
	ac.Used = true
	return nil
}

func (r *authCodeRepository) DeleteExpired(ctx context.Context) error {
	r.cache.DeleteExpired()
	return nil
}

// Session repository

type sessionRepository struct {
	mu    sync.RWMutex
	cache *gocache.Cache
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cache.Get(session.ID); ok {
		return agerrors.AlreadyExists("session", session.ID)
	}
	cp := *session
	r.cache.Set(session.ID, &cp, time.Until(session.ExpiresAt))
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.cache.Get(id)
	if !ok {
		return nil, agerrors.NotFound("session", id)
	}
	cp := *v.(*domain.Session)
	return &cp, nil
}

func (r *sessionRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.findBy(func(s *domain.Session) bool { return s.AccessTokenHash == hash })
}

func (r *sessionRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.findBy(func(s *domain.Session) bool {
		return s.RefreshTokenHash != "" && s.RefreshTokenHash == hash
	})
}

func (r *sessionRepository) findBy(match func(*domain.Session) bool) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.cache.Items() {
		s := item.Object.(*domain.Session)
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, agerrors.NotFound("session", "by token")
}

func (r *sessionRepository) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(id)
	if !ok {
		return nil
	}
	v.(*domain.Session).Active = false
	return nil
}

func (r *sessionRepository) TouchActivity(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(id)
	if !ok {
		return agerrors.NotFound("session", id)
	}
	v.(*domain.Session).LastActivityAt = time.Now()
	return nil
}

func (r *sessionRepository) List(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*domain.Session
	for _, item := range r.cache.Items() {
		s := item.Object.(*domain.Session)
		if userID == "" || s.UserID == userID {
			cp := *s
			sessions = append(sessions, &cp)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) error {
	r.cache.DeleteExpired()
	return nil
}

// Audit repository

type auditRepository struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
}

func (r *auditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *auditRepository) List(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.events) {
		limit = len(r.events)
	}
	out := make([]*domain.AuditEvent, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.events[i]
		out = append(out, &cp)
	}
	return out, nil
}
