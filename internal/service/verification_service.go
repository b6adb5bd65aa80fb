package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/repository"
	"github.com/diagnosis/puffit/pkg/events"
	"github.com/diagnosis/puffit/pkg/logger"
)

type VerificationService interface {
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
}

type verificationService struct {
	pending  repository.PendingUserRepository
	eventBus events.Publisher
	now      func() time.Time
}

func NewVerificationService(pending repository.PendingUserRepository, eventBus events.Publisher, now func() time.Time) VerificationService {
	if now == nil {
		now = nowUTC
	}
	return &verificationService{pending: pending, eventBus: eventBus, now: now}
}

func (s *verificationService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		VerificationsTotal.WithLabelValues("missing_token").Inc()
		return nil, domain.ErrMissingToken
	}

	user, err := s.pending.Promote(ctx, token, s.now())
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		VerificationsTotal.WithLabelValues("expired").Inc()
		return nil, err
	case errors.Is(err, domain.ErrInvalidToken):
		VerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	case errors.Is(err, domain.ErrEmailInUse):
		// Another pending row for this email was promoted first.
		VerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	case err != nil:
		VerificationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to promote pending user: %w", err)
	}

	VerificationsTotal.WithLabelValues("success").Inc()
	logger.InfoContext(ctx, "Email verified", "user_id", user.ID)

	verifiedAt := s.now()
	if user.EmailVerifiedAt != nil {
		verifiedAt = *user.EmailVerifiedAt
	}
	publish(ctx, s.eventBus, events.UserVerified, events.UserVerifiedEvent{
		UserID:     user.ID.String(),
		Email:      user.Email,
		VerifiedAt: verifiedAt,
	})

	return user, nil
}
