// Package domaintest provides in-memory repositories and a movable clock for domain tests.
// The repositories mirror the guarded SQL of the gorm implementations.
package domaintest

import (
	"context"
	"sort"
	"sync"
	"time"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/provider"
)

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Store holds every entity behind a single mutex so InTx is serializable.
type Store struct {
	mu        sync.Mutex
	providers map[uint]*provider.Provider
	keys      map[uint]*provider.ProviderKey
	sessions  map[uint]*chat.Session
	messages  []*chat.Message
	nextID    uint

	// ClaimErr, when set, fails every key claim.
	ClaimErr error
}

func NewStore() *Store {
	return &Store{
		providers: map[uint]*provider.Provider{},
		keys:      map[uint]*provider.ProviderKey{},
		sessions:  map[uint]*chat.Session{},
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// InTx runs fn directly; the store has no partial writes to roll back in tests.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) Providers() *Providers { return &Providers{s} }
func (s *Store) Keys() *Keys           { return &Keys{s} }
func (s *Store) Sessions() *Sessions   { return &Sessions{s} }
func (s *Store) Messages() *Messages   { return &Messages{s} }

// Key returns a copy of the stored key.
func (s *Store) Key(id uint) provider.ProviderKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.keys[id]
}

// Session returns a copy of the stored session.
func (s *Store) Session(id uint) chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[id]
}

// MessageCount returns the number of messages stored for a session.
func (s *Store) MessageCount(sessionID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			n++
		}
	}
	return n
}

// SetKey overwrites mutable key fields.
func (s *Store) SetKey(id uint, mutate func(k *provider.ProviderKey)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(s.keys[id])
}

// SetProvider overwrites mutable provider fields.
func (s *Store) SetProvider(id uint, mutate func(p *provider.Provider)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(s.providers[id])
}

type Providers struct{ s *Store }

var _ provider.ProviderRepository = (*Providers)(nil)

func (r *Providers) Upsert(ctx context.Context, p *provider.Provider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.providers {
		if existing.Code == p.Code {
			p.ID = existing.ID
		}
	}
	if p.ID == 0 {
		p.ID = r.s.id()
	}
	copied := *p
	r.s.providers[p.ID] = &copied
	return nil
}

func (r *Providers) FindByID(ctx context.Context, id uint) (*provider.Provider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.providers[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (r *Providers) FindByCode(ctx context.Context, code string) (*provider.Provider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.providers {
		if p.Code == code {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *Providers) FindAll(ctx context.Context) ([]*provider.Provider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*provider.Provider, 0, len(r.s.providers))
	for _, p := range r.s.providers {
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type Keys struct{ s *Store }

var _ provider.KeyRepository = (*Keys)(nil)

func (r *Keys) Create(ctx context.Context, key *provider.ProviderKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key.ID = r.s.id()
	if key.Status == "" {
		key.Status = provider.KeyStatusActive
	}
	copied := *key
	r.s.keys[key.ID] = &copied
	return nil
}

func (r *Keys) FindByID(ctx context.Context, id uint) (*provider.ProviderKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if k, ok := r.s.keys[id]; ok {
		copied := *k
		return &copied, nil
	}
	return nil, nil
}

func (r *Keys) FindByFingerprint(ctx context.Context, providerID uint, fingerprint string) (*provider.ProviderKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, k := range r.s.keys {
		if k.ProviderID == providerID && k.Fingerprint == fingerprint {
			copied := *k
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *Keys) FindAll(ctx context.Context) ([]*provider.ProviderKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*provider.ProviderKey, 0, len(r.s.keys))
	for _, k := range r.s.keys {
		copied := *k
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Keys) ClaimLeastUsed(ctx context.Context, filter provider.KeyClaimFilter, now time.Time) (*provider.ProviderKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ClaimErr != nil {
		return nil, r.s.ClaimErr
	}

	var best *provider.ProviderKey
	for _, k := range r.s.keys {
		if k.ProviderID != filter.ProviderID || k.Status != provider.KeyStatusActive {
			continue
		}
		if filter.ModelID != nil {
			if k.ModelID == nil || *k.ModelID != *filter.ModelID {
				continue
			}
			if k.DailyLimit != nil && k.DailyUsage >= *k.DailyLimit {
				continue
			}
		}
		if best == nil || lessUsed(k, best) {
			best = k
		}
	}
	if best == nil {
		return nil, nil
	}
	best.UsageCount++
	best.DailyUsage++
	best.UpdatedAt = now
	copied := *best
	return &copied, nil
}

func lessUsed(a, b *provider.ProviderKey) bool {
	if a.UsageCount != b.UsageCount {
		return a.UsageCount < b.UsageCount
	}
	if (a.LastUsedAt == nil) != (b.LastUsedAt == nil) {
		return a.LastUsedAt == nil
	}
	if a.LastUsedAt != nil && !a.LastUsedAt.Equal(*b.LastUsedAt) {
		return a.LastUsedAt.Before(*b.LastUsedAt)
	}
	return a.ID < b.ID
}

func (r *Keys) MarkRateLimited(ctx context.Context, id uint, resetAt time.Time, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k, ok := r.s.keys[id]
	if !ok || k.Status == provider.KeyStatusDisabled {
		return false, nil
	}
	if k.RateLimitResetAt == nil || k.Status != provider.KeyStatusRateLimited || resetAt.After(*k.RateLimitResetAt) {
		reset := resetAt
		k.RateLimitResetAt = &reset
	}
	k.Status = provider.KeyStatusRateLimited
	k.UpdatedAt = now
	return true, nil
}

func (r *Keys) Recover(ctx context.Context, id uint, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k, ok := r.s.keys[id]
	if !ok || k.Status != provider.KeyStatusRateLimited || k.RateLimitResetAt == nil || k.RateLimitResetAt.After(now) {
		return false, nil
	}
	k.Status = provider.KeyStatusActive
	k.RateLimitResetAt = nil
	k.UpdatedAt = now
	return true, nil
}

func (r *Keys) RecoverExpired(ctx context.Context, now time.Time) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uint
	for _, k := range r.s.keys {
		if k.Status == provider.KeyStatusRateLimited && k.RateLimitResetAt != nil && !k.RateLimitResetAt.After(now) {
			k.Status = provider.KeyStatusActive
			k.RateLimitResetAt = nil
			k.UpdatedAt = now
			ids = append(ids, k.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Keys) TouchLastUsed(ctx context.Context, id uint, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if k, ok := r.s.keys[id]; ok {
		used := now
		k.LastUsedAt = &used
	}
	return nil
}

func (r *Keys) ResetDailyUsage(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, k := range r.s.keys {
		if k.DailyUsage > 0 {
			k.DailyUsage = 0
			n++
		}
	}
	return n, nil
}

type Sessions struct{ s *Store }

var _ chat.SessionRepository = (*Sessions)(nil)

func (r *Sessions) Create(ctx context.Context, session *chat.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session.ID = r.s.id()
	copied := *session
	r.s.sessions[session.ID] = &copied
	return nil
}

func (r *Sessions) FindByPublicID(ctx context.Context, publicID string) (*chat.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.PublicID == publicID {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *Sessions) MarkPending(ctx context.Context, id uint, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || session.Status != chat.SessionStatusActive {
		return false, nil
	}
	session.Status = chat.SessionStatusPendingRateLimit
	session.UpdatedAt = now
	return true, nil
}

func (r *Sessions) Reactivate(ctx context.Context, id uint, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || session.Status != chat.SessionStatusPendingRateLimit {
		return false, nil
	}
	session.Status = chat.SessionStatusActive
	session.UpdatedAt = now
	return true, nil
}

func (r *Sessions) ReactivateForKeys(ctx context.Context, keyIDs []uint, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recovered := make(map[uint]bool, len(keyIDs))
	for _, id := range keyIDs {
		recovered[id] = true
	}
	var n int64
	for _, session := range r.s.sessions {
		if session.Status != chat.SessionStatusPendingRateLimit {
			continue
		}
		key, ok := r.s.keys[session.KeyID]
		if recovered[session.KeyID] || (ok && key.Status == provider.KeyStatusActive) {
			session.Status = chat.SessionStatusActive
			session.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

type Messages struct{ s *Store }

var _ chat.MessageRepository = (*Messages)(nil)

func (r *Messages) Append(ctx context.Context, m *chat.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id()
	copied := *m
	r.s.messages = append(r.s.messages, &copied)
	return nil
}

func (r *Messages) ListBySession(ctx context.Context, sessionID uint) ([]*chat.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*chat.Message
	for _, m := range r.s.messages {
		if m.SessionID == sessionID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}
