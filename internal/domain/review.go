package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MaxFlavors      = 5
	MaxMemoLength   = 1000
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = 100000
)

var (
	maxRating  = decimal.NewFromInt(5)
	ratingStep = decimal.NewFromFloat(0.5)
)

type Flavor struct {
	Flavor string `json:"flavor"`
	Brand  string `json:"brand,omitempty"`
}

type Review struct {
	ID        uuid.UUID       `json:"id"`
	ReviewNo  int64           `json:"reviewId"`
	UserID    uuid.UUID       `json:"userId"`
	Flavors   []Flavor        `json:"flavors"`
	Rating    decimal.Decimal `json:"rating"`
	Memo      string          `json:"memo,omitempty"`
	Date      time.Time       `json:"date"`
	IsPublic  bool            `json:"isPublic"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ReviewInput is the body for both create and update.
type ReviewInput struct {
	Flavors  []Flavor        `json:"flavors"`
	Rating   decimal.Decimal `json:"rating"`
	Memo     string          `json:"memo"`
	Date     Date            `json:"date"`
	IsPublic bool            `json:"isPublic"`
}

// Date is a review day. Browsers send date inputs as YYYY-MM-DD, API
// clients may send a full RFC3339 timestamp; both decode to UTC.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return invalid("date", "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return invalid("date", "must be YYYY-MM-DD or an RFC3339 timestamp")
	}
	d.Time = t.UTC()
	return nil
}

func (in *ReviewInput) Normalize() {
	in.Memo = strings.TrimSpace(in.Memo)
	flavors := in.Flavors[:0]
	for _, f := range in.Flavors {
		f.Flavor = strings.TrimSpace(f.Flavor)
		f.Brand = strings.TrimSpace(f.Brand)
		if f.Flavor == "" && f.Brand == "" {
			continue
		}
		flavors = append(flavors, f)
	}
	in.Flavors = flavors
}

func (in *ReviewInput) Validate() error {
	if len(in.Flavors) == 0 {
		return invalid("flavors", "at least one flavor is required")
	}
	if len(in.Flavors) > MaxFlavors {
		return invalid("flavors", "at most 5 flavors")
	}
	for _, f := range in.Flavors {
		if f.Flavor == "" {
			return invalid("flavors", "flavor name is required")
		}
	}
	if in.Rating.IsNegative() || in.Rating.GreaterThan(maxRating) {
		return invalid("rating", "must be between 0 and 5")
	}
	if !in.Rating.Mod(ratingStep).IsZero() {
		return invalid("rating", "must be in steps of 0.5")
	}
	if len([]rune(in.Memo)) > MaxMemoLength {
		return invalid("memo", "is too long")
	}
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	return nil
}

type ReviewSort string

const (
	SortByDate      ReviewSort = "date"
	SortByRating    ReviewSort = "rating"
	SortByCreatedAt ReviewSort = "created_at"
)

// ReviewFilter drives the list query; zero values mean "no filter".
type ReviewFilter struct {
	UserID    uuid.UUID
	Page      int
	Limit     int
	Sort      ReviewSort
	Ascending bool
	Flavor    string
	MinRating *decimal.Decimal
}

func (f *ReviewFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	switch f.Sort {
	case SortByDate, SortByRating, SortByCreatedAt:
	default:
		f.Sort = SortByDate
	}
	f.Flavor = strings.TrimSpace(f.Flavor)
}

// Offset is computed from the page and limit clamped to their maxima, so it
// never overflows into a negative OFFSET.
func (f *ReviewFilter) Offset() int64 {
	page := min(max(f.Page, 1), MaxPage)
	limit := min(max(f.Limit, 0), MaxPageSize)
	return int64(page-1) * int64(limit)
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func NewPagination(total int64, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, Page: page, Limit: limit, TotalPages: pages}
}

type ReviewPage struct {
	Reviews    []Review   `json:"reviews"`
	Pagination Pagination `json:"pagination"`
}
