package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/repository"
	"github.com/diagnosis/puffit/pkg/events"
	"github.com/diagnosis/puffit/pkg/logger"
	"github.com/google/uuid"
)

type AccountService interface {
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

type accountService struct {
	users    repository.UserRepository
	eventBus events.Publisher
}

func NewAccountService(users repository.UserRepository, eventBus events.Publisher) AccountService {
	return &accountService{users: users, eventBus: eventBus}
}

func (s *accountService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	logger.InfoContext(ctx, "Account deleted", "user_id", userID)
	publish(ctx, s.eventBus, events.AccountDeleted, events.AccountDeletedEvent{
		UserID:    userID.String(),
		DeletedAt: nowUTC(),
	})
	return nil
}
