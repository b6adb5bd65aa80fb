package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/repository"
	"github.com/diagnosis/puffit/pkg/events"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type ReviewService interface {
	Create(ctx context.Context, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error)
	// Get returns public reviews to anyone and private ones to their owner.
	// viewer is uuid.Nil for anonymous callers.
	Get(ctx context.Context, viewer, id uuid.UUID) (*domain.Review, error)
	Update(ctx context.Context, userID, id uuid.UUID, in *domain.ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, f domain.ReviewFilter) (*domain.ReviewPage, error)
}

type reviewService struct {
	reviews  repository.ReviewRepository
	eventBus events.Publisher
}

func NewReviewService(reviews repository.ReviewRepository, eventBus events.Publisher) ReviewService {
	return &reviewService{reviews: reviews, eventBus: eventBus}
}

func (s *reviewService) Create(ctx context.Context, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	rv, err := s.reviews.Create(ctx, userID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	publish(ctx, s.eventBus, events.ReviewCreated, events.ReviewEvent{
		ReviewID: rv.ID.String(),
		UserID:   userID.String(),
		At:       rv.CreatedAt,
	})
	return rv, nil
}

func (s *reviewService) Get(ctx context.Context, viewer, id uuid.UUID) (*domain.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	// Private reviews are invisible, not forbidden, to everyone but the owner.
	if rv == nil || (!rv.IsPublic && rv.UserID != viewer) {
		return nil, domain.ErrNotFound
	}
	return rv, nil
}

func (s *reviewService) owned(ctx context.Context, userID, id uuid.UUID) error {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get review: %w", err)
	}
	if rv == nil {
		return domain.ErrNotFound
	}
	if rv.UserID != userID {
		return domain.ErrForbidden
	}
	return nil
}

func (s *reviewService) Update(ctx context.Context, userID, id uuid.UUID, in *domain.ReviewInput) (*domain.Review, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}

	rv, err := s.reviews.Update(ctx, id, userID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	if rv == nil {
		return nil, domain.ErrNotFound
	}
	return rv, nil
}

func (s *reviewService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.owned(ctx, userID, id); err != nil {
		return err
	}

	ok, err := s.reviews.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}

	publish(ctx, s.eventBus, events.ReviewDeleted, events.ReviewEvent{
		ReviewID: id.String(),
		UserID:   userID.String(),
		At:       nowUTC(),
	})
	return nil
}

func (s *reviewService) List(ctx context.Context, f domain.ReviewFilter) (*domain.ReviewPage, error) {
	f.Normalize()

	var (
		reviews []domain.Review
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reviews, err = s.reviews.List(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.reviews.Count(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	return &domain.ReviewPage{
		Reviews:    reviews,
		Pagination: domain.NewPagination(total, f.Page, f.Limit),
	}, nil
}
