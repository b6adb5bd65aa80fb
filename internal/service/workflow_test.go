package service

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/token"
	"github.com/diagnosis/puffit/pkg/events"
)

type harness struct {
	store  *memStore
	mail   *fakeMailer
	bus    *fakeBus
	clock  *fakeClock
	reg    RegistrationService
	verify VerificationService
}

func newHarness() *harness {
	h := &harness{
		store: newMemStore(),
		mail:  &fakeMailer{},
		bus:   &fakeBus{},
		clock: &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
	}
	issuer := token.NewIssuer(24*time.Hour, token.WithClock(h.clock.Now))
	h.reg = NewRegistrationService(memUsers{h.store}, memPending{h.store}, plainHasher{}, issuer, h.mail, h.bus)
	h.verify = NewVerificationService(memPending{h.store}, h.bus, h.clock.Now)
	return h
}

func registerReq(email, name, password string) *domain.RegisterRequest {
	return &domain.RegisterRequest{Email: email, Name: name, Password: password}
}

func TestRegisterCreatesPendingAndSendsOnce(t *testing.T) {
	h := newHarness()

	res, err := h.reg.Register(context.Background(), registerReq(" A@X.com ", "A", "pw123456"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Resent {
		t.Fatalf("first registration reported as resent")
	}
	if res.Email != "a@x.com" {
		t.Fatalf("email not normalized: %q", res.Email)
	}

	if len(h.store.pending) != 1 {
		t.Fatalf("expected 1 pending row, got %d", len(h.store.pending))
	}
	p := h.store.pending["a@x.com"]
	if p.HashedPassword == "pw123456" {
		t.Fatalf("plaintext password stored")
	}
	if want := h.clock.Now().Add(24 * time.Hour); !p.VerificationTokenExpires.Equal(want) {
		t.Fatalf("expires = %v, want %v", p.VerificationTokenExpires, want)
	}

	if len(h.mail.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(h.mail.sent))
	}
	sent := h.mail.last()
	if sent.to != "a@x.com" || sent.token != p.VerificationToken {
		t.Fatalf("unexpected mail %+v", sent)
	}
	if raw, err := hex.DecodeString(sent.token); err != nil || len(raw) < 16 {
		t.Fatalf("token %q lacks 128 bits of entropy", sent.token)
	}

	if got := h.bus.subjects(); len(got) != 1 || got[0] != events.UserRegistered {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestRegisterValidationHasNoSideEffects(t *testing.T) {
	tests := []struct {
		name string
		req  *domain.RegisterRequest
	}{
		{"missing email", registerReq("", "A", "pw123456")},
		{"missing name", registerReq("a@x.com", "  ", "pw123456")},
		{"missing password", registerReq("a@x.com", "A", "")},
		{"bad email", registerReq("not-an-email", "A", "pw123456")},
		{"short password", registerReq("a@x.com", "A", "short")},
		{"mismatch", &domain.RegisterRequest{Email: "a@x.com", Name: "A", Password: "pw123456", ConfirmPassword: "other123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.reg.Register(context.Background(), tt.req)
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if h.store.reads != 0 || h.store.writes != 0 || len(h.mail.sent) != 0 {
				t.Fatalf("side effects: reads=%d writes=%d mails=%d", h.store.reads, h.store.writes, len(h.mail.sent))
			}
		})
	}
}

func TestRegisterActiveUserConflict(t *testing.T) {
	h := newHarness()
	h.store.users["a@x.com"] = &domain.User{Email: "a@x.com", Status: domain.StatusActive}

	_, err := h.reg.Register(context.Background(), registerReq("a@x.com", "A", "pw123456"))
	if !errors.Is(err, domain.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
	if h.store.writes != 0 || len(h.mail.sent) != 0 || len(h.store.pending) != 0 {
		t.Fatalf("conflict performed writes=%d mails=%d", h.store.writes, len(h.mail.sent))
	}
}

func TestRegisterTwiceReissuesToken(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.reg.Register(ctx, registerReq("a@x.com", "A", "pw123456")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	first := h.mail.last().token

	h.clock.Advance(time.Minute)
	res, err := h.reg.Register(ctx, registerReq("a@x.com", "A2", "pw654321"))
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if !res.Resent {
		t.Fatalf("second registration should be a resend")
	}
	second := h.mail.last().token

	if first == second {
		t.Fatalf("token was not reissued")
	}
	if len(h.store.pending) != 1 {
		t.Fatalf("expected 1 pending row, got %d", len(h.store.pending))
	}
	if p := h.store.pending["a@x.com"]; p.Name != "A2" || p.HashedPassword != "hashed:pw654321" {
		t.Fatalf("pending row not refreshed: %+v", p)
	}

	if _, err := h.verify.VerifyEmail(ctx, first); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("first token should no longer verify, got %v", err)
	}
	if _, err := h.verify.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("second token should verify: %v", err)
	}
}

func TestRegisterMailFailureKeepsPending(t *testing.T) {
	h := newHarness()
	h.mail.err = errors.New("smtp down")

	_, err := h.reg.Register(context.Background(), registerReq("a@x.com", "A", "pw123456"))
	if !errors.Is(err, domain.ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
	if _, ok := h.store.pending["a@x.com"]; !ok {
		t.Fatalf("pending row should persist after mail failure")
	}
	if len(h.bus.subjects()) != 0 {
		t.Fatalf("no event expected on failure")
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	h := newHarness()
	h.store.failOn = "pending.Upsert"

	_, err := h.reg.Register(context.Background(), registerReq("a@x.com", "A", "pw123456"))
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(h.mail.sent) != 0 {
		t.Fatalf("mail sent despite store failure")
	}
}

func TestRegisterIgnoresEventFailure(t *testing.T) {
	h := newHarness()
	h.bus.err = errors.New("nats down")

	if _, err := h.reg.Register(context.Background(), registerReq("a@x.com", "A", "pw123456")); err != nil {
		t.Fatalf("event failure leaked: %v", err)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.reg.Register(ctx, registerReq("a@x.com", "Alice", "pw123456")); err != nil {
		t.Fatalf("register: %v", err)
	}
	u, err := h.verify.VerifyEmail(ctx, h.mail.last().token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if u.Email != "a@x.com" || u.Name != "Alice" || u.Status != domain.StatusActive {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.HashedPassword != "hashed:pw123456" {
		t.Fatalf("hash not copied")
	}
	if len(h.store.pending) != 0 {
		t.Fatalf("pending row survived verification")
	}
	subjects := h.bus.subjects()
	if len(subjects) != 2 || subjects[1] != events.UserVerified {
		t.Fatalf("unexpected events %v", subjects)
	}
}

func TestVerifyMissingTokenTouchesNothing(t *testing.T) {
	h := newHarness()

	_, err := h.verify.VerifyEmail(context.Background(), "")
	if !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if h.store.reads != 0 || h.store.writes != 0 {
		t.Fatalf("store accessed: reads=%d writes=%d", h.store.reads, h.store.writes)
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	h := newHarness()
	if _, err := h.verify.VerifyEmail(context.Background(), "feedface"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyExpiredDeletesPending(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.reg.Register(ctx, registerReq("a@x.com", "A", "pw123456")); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.clock.Advance(24*time.Hour + time.Second)

	_, err := h.verify.VerifyEmail(ctx, h.mail.last().token)
	if !errors.Is(err, domain.ErrTokenExpired) || !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
	if len(h.store.pending) != 0 {
		t.Fatalf("expired row not removed")
	}
	if len(h.store.users) != 0 {
		t.Fatalf("expired token created a user")
	}
}

func TestVerifyIsExactlyOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.reg.Register(ctx, registerReq("a@x.com", "A", "pw123456")); err != nil {
		t.Fatalf("register: %v", err)
	}
	tok := h.mail.last().token

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		invalid int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.verify.VerifyEmail(ctx, tok)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else if errors.Is(err, domain.ErrInvalidToken) {
				invalid++
			}
		}()
	}
	wg.Wait()

	if success != 1 || invalid != workers-1 {
		t.Fatalf("success=%d invalid=%d", success, invalid)
	}
	if len(h.store.users) != 1 {
		t.Fatalf("expected exactly one user, got %d", len(h.store.users))
	}
}

func TestVerifyStoreFailure(t *testing.T) {
	h := newHarness()
	h.store.failOn = "pending.Promote"

	_, err := h.verify.VerifyEmail(context.Background(), "abc")
	if !errors.Is(err, errStoreDown) || errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected store error, got %v", err)
	}
}
