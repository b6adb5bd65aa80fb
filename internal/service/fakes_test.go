package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/google/uuid"
)

// memStore backs the user, pending and review fakes with one lock so
// promotion is atomic the way the Postgres transaction is.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	pending map[string]*domain.PendingUser
	reviews map[uuid.UUID]*domain.Review
	writes  int
	reads   int
	failOn  string
	nextNo  int64
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*domain.User{},
		pending: map[string]*domain.PendingUser{},
		reviews: map[uuid.UUID]*domain.Review{},
	}
}

var errStoreDown = errors.New("store unavailable")

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return errStoreDown
	}
	return nil
}

type memUsers struct{ *memStore }
type memPending struct{ *memStore }
type memReviews struct{ *memStore }

func (m memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if err := m.fail("users.FindByEmail"); err != nil {
		return nil, err
	}
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m memUsers) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memUsers) DeleteAccount(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, u := range m.users {
		if u.ID != id {
			continue
		}
		for rid, rv := range m.reviews {
			if rv.UserID == id {
				delete(m.reviews, rid)
			}
		}
		delete(m.users, email)
		m.writes++
		return nil
	}
	return domain.ErrNotFound
}

func (m memPending) Upsert(_ context.Context, p *domain.PendingUser) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("pending.Upsert"); err != nil {
		return false, err
	}
	if _, ok := m.users[p.Email]; ok {
		return false, domain.ErrEmailInUse
	}
	m.writes++
	now := time.Now()
	if cur, ok := m.pending[p.Email]; ok {
		cur.Name = p.Name
		cur.HashedPassword = p.HashedPassword
		cur.VerificationToken = p.VerificationToken
		cur.VerificationTokenExpires = p.VerificationTokenExpires
		cur.UpdatedAt = now
		p.ID, p.CreatedAt, p.UpdatedAt = cur.ID, cur.CreatedAt, cur.UpdatedAt
		return false, nil
	}
	cp := *p
	cp.ID = uuid.New()
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.pending[p.Email] = &cp
	p.ID, p.CreatedAt, p.UpdatedAt = cp.ID, cp.CreatedAt, cp.UpdatedAt
	return true, nil
}

func (m memPending) FindByEmail(_ context.Context, email string) (*domain.PendingUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if p, ok := m.pending[email]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m memPending) FindByToken(_ context.Context, token string) (*domain.PendingUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, p := range m.pending {
		if p.VerificationToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memPending) Promote(_ context.Context, token string, now time.Time) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if err := m.fail("pending.Promote"); err != nil {
		return nil, err
	}

	var p *domain.PendingUser
	for _, cand := range m.pending {
		if cand.VerificationToken == token {
			p = cand
			break
		}
	}
	if p == nil {
		return nil, domain.ErrInvalidToken
	}

	delete(m.pending, p.Email)
	m.writes++
	if p.Expired(now) {
		return nil, domain.ErrTokenExpired
	}
	if _, ok := m.users[p.Email]; ok {
		return nil, domain.ErrEmailInUse
	}

	verified := now
	u := &domain.User{
		ID:              uuid.New(),
		Email:           p.Email,
		Name:            p.Name,
		HashedPassword:  p.HashedPassword,
		Status:          domain.StatusActive,
		EmailVerifiedAt: &verified,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.users[u.Email] = u
	cp := *u
	return &cp, nil
}

func (m memPending) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("pending.DeleteExpired"); err != nil {
		return 0, err
	}
	var n int64
	for email, p := range m.pending {
		if p.Expired(now) {
			delete(m.pending, email)
			n++
		}
	}
	return n, nil
}

func (m memReviews) Create(_ context.Context, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextNo++
	now := time.Now()
	rv := &domain.Review{
		ID:        uuid.New(),
		ReviewNo:  m.nextNo,
		UserID:    userID,
		Flavors:   append([]domain.Flavor(nil), in.Flavors...),
		Rating:    in.Rating,
		Memo:      in.Memo,
		Date:      in.Date.Time,
		IsPublic:  in.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.reviews[rv.ID] = rv
	cp := *rv
	return &cp, nil
}

func (m memReviews) GetByID(_ context.Context, id uuid.UUID) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rv, ok := m.reviews[id]; ok {
		cp := *rv
		return &cp, nil
	}
	return nil, nil
}

func (m memReviews) Update(_ context.Context, id, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.reviews[id]
	if !ok || rv.UserID != userID {
		return nil, nil
	}
	rv.Flavors, rv.Rating, rv.Memo, rv.Date, rv.IsPublic = in.Flavors, in.Rating, in.Memo, in.Date.Time, in.IsPublic
	rv.UpdatedAt = time.Now()
	cp := *rv
	return &cp, nil
}

func (m memReviews) Delete(_ context.Context, id, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.reviews[id]
	if !ok || rv.UserID != userID {
		return false, nil
	}
	delete(m.reviews, id)
	return true, nil
}

func (m memReviews) matching(f domain.ReviewFilter) []domain.Review {
	var out []domain.Review
	for _, rv := range m.reviews {
		if rv.UserID != f.UserID {
			continue
		}
		if f.MinRating != nil && rv.Rating.LessThan(*f.MinRating) {
			continue
		}
		if f.Flavor != "" && !hasFlavor(rv.Flavors, f.Flavor) {
			continue
		}
		out = append(out, *rv)
	}
	sort.Slice(out, func(i, j int) bool {
		less := out[i].Date.Before(out[j].Date)
		if f.Ascending {
			return less
		}
		return !less
	})
	return out
}

func hasFlavor(flavors []domain.Flavor, q string) bool {
	q = strings.ToLower(q)
	for _, fl := range flavors {
		if strings.Contains(strings.ToLower(fl.Flavor), q) || strings.Contains(strings.ToLower(fl.Brand), q) {
			return true
		}
	}
	return false
}

func (m memReviews) List(_ context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Normalize()
	all := m.matching(f)
	start := int(f.Offset())
	if start >= len(all) {
		return []domain.Review{}, nil
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m memReviews) Count(_ context.Context, f domain.ReviewFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(f))), nil
}

type sentMail struct {
	to, name, token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendVerificationEmail(_ context.Context, toEmail, toName, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: toEmail, name: toName, token: token})
	return f.err
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// plainHasher keeps tests fast; the real hashers are covered in security.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

type published struct {
	subject string
	payload interface{}
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (b *fakeBus) Publish(_ context.Context, subject string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{subject: subject, payload: data})
	return b.err
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.subject)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
