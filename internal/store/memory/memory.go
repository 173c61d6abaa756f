// Package memory implementa store.Store en memoria de proceso.
// Sirve para desarrollo local y tests; reproduce la semántica CAS de los
// adapters reales bajo un mutex por repositorio.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/store"
)

// Store implementa store.Store en memoria.
type Store struct {
	users       *userStore
	sessions    *sessionRepo
	tokens      *refreshTokenRepo
	blacklist   *blacklistRepo
	magicLinks  *magicLinkRepo
	events      *eventRepo
	incidents   *incidentRepo
	audit       *auditRepo
	lockouts    *lockoutRepo
	mfaFailures *mfaFailureRepo
}

// New construye un Store vacío.
func New() *Store {
	return &Store{
		users:       &userStore{byID: map[string]repository.User{}},
		sessions:    &sessionRepo{items: map[string]repository.Session{}},
		tokens:      &refreshTokenRepo{byHash: map[string]repository.RefreshToken{}},
		blacklist:   &blacklistRepo{items: map[string]repository.BlacklistEntry{}},
		magicLinks:  &magicLinkRepo{byToken: map[string]repository.MagicLink{}},
		events:      &eventRepo{byID: map[string]repository.SecurityEvent{}},
		incidents:   &incidentRepo{byID: map[string]repository.Incident{}, byEventID: map[string]string{}},
		audit:       &auditRepo{},
		lockouts:    &lockoutRepo{items: map[string]repository.LockoutRecord{}},
		mfaFailures: &mfaFailureRepo{},
	}
}

func (s *Store) Users() repository.UserStore                      { return s.users }
func (s *Store) Sessions() repository.SessionRepository           { return s.sessions }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return s.tokens }
func (s *Store) Blacklist() repository.BlacklistRepository        { return s.blacklist }
func (s *Store) MagicLinks() repository.MagicLinkRepository       { return s.magicLinks }
func (s *Store) Events() repository.SecurityEventRepository       { return s.events }
func (s *Store) Incidents() repository.IncidentRepository         { return s.incidents }
func (s *Store) Audit() repository.AuditRepository                { return s.audit }
func (s *Store) Lockouts() repository.LockoutRepository           { return s.lockouts }
func (s *Store) MFAFailures() repository.MFAFailureRepository     { return s.mfaFailures }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

// SeedUser registra un usuario en el user store en memoria (dev y tests).
func (s *Store) SeedUser(u repository.User) {
	s.users.mu.Lock()
	defer s.users.mu.Unlock()
	s.users.byID[u.ID] = u
}

var _ store.Store = (*Store)(nil)

type userStore struct {
	mu   sync.RWMutex
	byID map[string]repository.User
}

func (r *userStore) FindByEmail(_ context.Context, email string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) && u.IsActive {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userStore) FindByID(_ context.Context, id string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := u
	return &out, nil
}

type sessionRepo struct {
	mu    sync.Mutex
	items map[string]repository.Session
}

func (r *sessionRepo) Create(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := r.items[id]; ok {
		return nil, repository.ErrConflict
	}
	now := time.Now().UTC()
	s := repository.Session{
		ID:                id,
		UserID:            input.UserID,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
		DeviceFingerprint: input.DeviceFingerprint,
		CreatedAt:         now,
		LastActivity:      now,
		ExpiresAt:         input.ExpiresAt,
		IsActive:          true,
	}
	r.items[id] = s
	out := s
	return &out, nil
}

func (r *sessionRepo) Get(_ context.Context, id string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s
	return &out, nil
}

func (r *sessionRepo) Terminate(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !s.IsActive {
		return nil
	}
	now := time.Now().UTC()
	s.IsActive = false
	s.TerminatedAt = &now
	s.TerminationReason = &reason
	r.items[id] = s
	return nil
}

func (r *sessionRepo) TerminateAllByUser(_ context.Context, userID, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for id, s := range r.items {
		if s.UserID != userID || !s.IsActive {
			continue
		}
		rsn := reason
		at := now
		s.IsActive = false
		s.TerminatedAt = &at
		s.TerminationReason = &rsn
		r.items[id] = s
		n++
	}
	return n, nil
}

func (r *sessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.LastActivity = at
	r.items[id] = s
	return nil
}

func (r *sessionRepo) ListByUser(_ context.Context, userID string) ([]repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Session
	for _, s := range r.items {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *sessionRepo) DeleteTerminatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.items {
		if !s.IsActive && s.TerminatedAt != nil && s.TerminatedAt.Before(cutoff) {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

type refreshTokenRepo struct {
	mu     sync.Mutex
	byHash map[string]repository.RefreshToken
}

func (r *refreshTokenRepo) Create(_ context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHash[input.TokenHash]; ok {
		return "", repository.ErrConflict
	}
	now := time.Now().UTC()
	t := repository.RefreshToken{
		ID:         uuid.NewString(),
		UserID:     input.UserID,
		TokenHash:  input.TokenHash,
		DeviceInfo: input.DeviceInfo,
		IssuedAt:   now,
		ExpiresAt:  now.Add(input.TTL),
	}
	r.byHash[input.TokenHash] = t
	return t.ID, nil
}

func (r *refreshTokenRepo) GetByHash(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := t
	return &out, nil
}

func (r *refreshTokenRepo) Rotate(_ context.Context, oldHash string, next repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byHash[oldHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if old.RevokedAt != nil {
		return nil, repository.ErrTokenRevoked
	}
	now := time.Now().UTC()
	old.RevokedAt = &now
	r.byHash[oldHash] = old
	if now.After(old.ExpiresAt) {
		return nil, repository.ErrTokenExpired
	}
	t := repository.RefreshToken{
		ID:         uuid.NewString(),
		UserID:     next.UserID,
		TokenHash:  next.TokenHash,
		DeviceInfo: next.DeviceInfo,
		IssuedAt:   now,
		ExpiresAt:  now.Add(next.TTL),
	}
	r.byHash[next.TokenHash] = t
	out := t
	return &out, nil
}

func (r *refreshTokenRepo) Revoke(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[tokenHash]
	if !ok || t.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	r.byHash[tokenHash] = t
	return nil
}

func (r *refreshTokenRepo) RevokeAllByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for h, t := range r.byHash {
		if t.UserID != userID || t.RevokedAt != nil {
			continue
		}
		at := now
		t.RevokedAt = &at
		r.byHash[h] = t
		n++
	}
	return n, nil
}

func (r *refreshTokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for h, t := range r.byHash {
		if t.ExpiresAt.Before(cutoff) || (t.RevokedAt != nil && t.RevokedAt.Before(cutoff)) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

type blacklistRepo struct {
	mu    sync.RWMutex
	items map[string]repository.BlacklistEntry
}

func (r *blacklistRepo) Add(_ context.Context, entry repository.BlacklistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[entry.TokenHash]; ok {
		return nil
	}
	r.items[entry.TokenHash] = entry
	return nil
}

func (r *blacklistRepo) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[tokenHash]
	return ok, nil
}

func (r *blacklistRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for h, e := range r.items {
		if e.ExpiresAt.Before(now) {
			delete(r.items, h)
			n++
		}
	}
	return n, nil
}

type magicLinkRepo struct {
	mu      sync.Mutex
	byToken map[string]repository.MagicLink
}

func (r *magicLinkRepo) Create(_ context.Context, input repository.CreateMagicLinkInput) (*repository.MagicLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byToken[input.Token]; ok {
		return nil, repository.ErrConflict
	}
	now := time.Now().UTC()
	l := repository.MagicLink{
		ID:        uuid.NewString(),
		Email:     input.Email,
		Token:     input.Token,
		ExpiresAt: now.Add(input.TTL),
		CreatedAt: now,
	}
	r.byToken[input.Token] = l
	out := l
	return &out, nil
}

func (r *magicLinkRepo) Consume(_ context.Context, token, ip string) (*repository.MagicLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if l.Used {
		return nil, repository.ErrTokenUsed
	}
	now := time.Now().UTC()
	if now.After(l.ExpiresAt) {
		return nil, repository.ErrTokenExpired
	}
	l.Used = true
	l.UsedAt = &now
	l.UsedIP = &ip
	r.byToken[token] = l
	out := l
	return &out, nil
}

func (r *magicLinkRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for t, l := range r.byToken {
		if l.ExpiresAt.Before(cutoff) || (l.Used && l.UsedAt != nil && l.UsedAt.Before(cutoff)) {
			delete(r.byToken, t)
			n++
		}
	}
	return n, nil
}

type eventRepo struct {
	mu   sync.Mutex
	byID map[string]repository.SecurityEvent
}

func (r *eventRepo) Insert(_ context.Context, ev repository.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ev.EventID]; ok {
		return repository.ErrConflict
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	r.byID[ev.EventID] = ev
	return nil
}

func (r *eventRepo) Get(_ context.Context, eventID string) (*repository.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.byID[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := ev
	return &out, nil
}

func (r *eventRepo) List(_ context.Context, filter repository.SecurityEventFilter) ([]repository.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.SecurityEvent
	for _, ev := range r.byID {
		if filter.Type != nil && ev.Type != *filter.Type {
			continue
		}
		if filter.Severity != nil && ev.Severity != *filter.Severity {
			continue
		}
		if filter.Since != nil && ev.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type incidentRepo struct {
	mu        sync.Mutex
	byID      map[string]repository.Incident
	byEventID map[string]string
}

func (r *incidentRepo) CreateForEvent(_ context.Context, inc repository.Incident) (*repository.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.byEventID[inc.EventID]; ok {
		existing := r.byID[existingID]
		out := existing
		return &out, repository.ErrConflict
	}
	now := time.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now
	r.byID[inc.ID] = inc
	r.byEventID[inc.EventID] = inc.ID
	out := inc
	return &out, nil
}

func (r *incidentRepo) Get(_ context.Context, id string) (*repository.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := inc
	return &out, nil
}

func (r *incidentRepo) GetByEventID(_ context.Context, eventID string) (*repository.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEventID[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := r.byID[id]
	return &out, nil
}

func (r *incidentRepo) Transition(_ context.Context, id string, upd repository.IncidentUpdate) (*repository.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if inc.State == upd.State {
		out := inc
		return &out, nil
	}
	if !inc.State.CanTransitionTo(upd.State) {
		return nil, repository.ErrInvalidTransition
	}
	now := time.Now().UTC()
	inc.State = upd.State
	inc.UpdatedAt = now
	switch {
	case upd.State.Terminal():
		inc.ResolutionText = upd.Notes
		inc.ResolvedBy = &upd.Actor
		inc.ResolvedAt = &now
	default:
		inc.AckNotes = upd.Notes
		inc.AckBy = &upd.Actor
		inc.AckAt = &now
	}
	r.byID[id] = inc
	out := inc
	return &out, nil
}

func (r *incidentRepo) List(_ context.Context, limit int) ([]repository.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Incident
	for _, inc := range r.byID {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type auditRepo struct {
	mu      sync.Mutex
	entries []repository.AuditEntry
}

func (r *auditRepo) Append(_ context.Context, entry repository.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Entries retorna una copia del audit log (solo tests).
func (r *auditRepo) Entries() []repository.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// AuditEntries expone el audit log en memoria para aserciones en tests.
func (s *Store) AuditEntries() []repository.AuditEntry { return s.audit.Entries() }

type lockoutRepo struct {
	mu    sync.Mutex
	items map[string]repository.LockoutRecord
}

func (r *lockoutRepo) Get(_ context.Context, identity string) (*repository.LockoutRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[identity]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (r *lockoutRepo) IncrementFailures(_ context.Context, identity string) (*repository.LockoutRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.items[identity]
	rec.Identity = identity
	rec.Failures++
	rec.UpdatedAt = time.Now().UTC()
	r.items[identity] = rec
	out := rec
	return &out, nil
}

func (r *lockoutRepo) SetLock(_ context.Context, identity string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[identity]
	if !ok {
		return repository.ErrNotFound
	}
	rec.LockedUntil = &until
	rec.UpdatedAt = time.Now().UTC()
	r.items[identity] = rec
	return nil
}

func (r *lockoutRepo) Reset(_ context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, identity)
	return nil
}

type mfaFailureRepo struct {
	mu       sync.Mutex
	failures []repository.MFAFailure
}

func (r *mfaFailureRepo) Append(_ context.Context, f repository.MFAFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	r.failures = append(r.failures, f)
	return nil
}
