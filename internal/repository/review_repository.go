package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReviewRepository interface {
	Create(ctx context.Context, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	// Update and Delete only touch rows owned by userID; a miss returns
	// nil / false.
	Update(ctx context.Context, id, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	List(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error)
	Count(ctx context.Context, f domain.ReviewFilter) (int64, error)
}

type reviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{pool: pool}
}

const reviewCols = `id, review_no, user_id, flavors, rating, memo, date, is_public, created_at, updated_at`

var sortColumns = map[domain.ReviewSort]string{
	domain.SortByDate:      "date",
	domain.SortByRating:    "rating",
	domain.SortByCreatedAt: "created_at",
}

func scanReview(row rowScanner) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(&rv.ID, &rv.ReviewNo, &rv.UserID, &rv.Flavors, &rv.Rating, &rv.Memo, &rv.Date, &rv.IsPublic, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepository) Create(ctx context.Context, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error) {
	const q = `INSERT INTO shisha_reviews (id, user_id, flavors, rating, memo, date, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + reviewCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanReview(r.pool.QueryRow(ctx, q,
		uuid.New(), userID, in.Flavors, in.Rating, in.Memo, in.Date.Time, in.IsPublic))
}

func (r *reviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	const q = `SELECT ` + reviewCols + ` FROM shisha_reviews WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rv, err := scanReview(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rv, err
}

func (r *reviewRepository) Update(ctx context.Context, id, userID uuid.UUID, in *domain.ReviewInput) (*domain.Review, error) {
	const q = `UPDATE shisha_reviews
		SET flavors = $3, rating = $4, memo = $5, date = $6, is_public = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + reviewCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rv, err := scanReview(r.pool.QueryRow(ctx, q,
		id, userID, in.Flavors, in.Rating, in.Memo, in.Date.Time, in.IsPublic))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rv, err
}

func (r *reviewRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	const q = `DELETE FROM shisha_reviews WHERE id = $1 AND user_id = $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *reviewRepository) List(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	f.Normalize()
	where, args := reviewWhere(f)

	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	q := fmt.Sprintf(`SELECT %s FROM shisha_reviews WHERE %s ORDER BY %s %s, review_no DESC LIMIT $%d OFFSET $%d`,
		reviewCols, where, sortColumns[f.Sort], dir, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset())

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Review, 0, f.Limit)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

func (r *reviewRepository) Count(ctx context.Context, f domain.ReviewFilter) (int64, error) {
	f.Normalize()
	where, args := reviewWhere(f)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM shisha_reviews WHERE `+where, args...).Scan(&n)
	return n, err
}

func reviewWhere(f domain.ReviewFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{f.UserID}

	if f.Flavor != "" {
		args = append(args, "%"+escapeLike(f.Flavor)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM jsonb_array_elements(flavors) fl WHERE fl->>'flavor' ILIKE $%d OR fl->>'brand' ILIKE $%d)`, n, n))
	}
	if f.MinRating != nil {
		args = append(args, *f.MinRating)
		clauses = append(clauses, fmt.Sprintf("rating >= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
