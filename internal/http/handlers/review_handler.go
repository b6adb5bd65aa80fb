package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/http/middleware"
	"github.com/diagnosis/puffit/internal/http/response"
	"github.com/diagnosis/puffit/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReviewHandler struct {
	reviews     service.ReviewService
	session     middleware.Session
	idempotency func(http.Handler) http.Handler
	dev         bool
}

func NewReviewHandler(reviews service.ReviewService, session middleware.Session, idempotency func(http.Handler) http.Handler, dev bool) *ReviewHandler {
	if idempotency == nil {
		idempotency = passthrough
	}
	return &ReviewHandler{reviews: reviews, session: session, idempotency: idempotency, dev: dev}
}

func (h *ReviewHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.session.Require, h.idempotency).Post("/", h.create)
	r.With(h.session.Require).Get("/", h.list)
	r.With(h.session.Optional).Get("/{id}", h.get)
	r.With(h.session.Require).Put("/{id}", h.update)
	r.With(h.session.Require).Delete("/{id}", h.delete)
	return r
}

func reviewID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid review ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ReviewHandler) create(w http.ResponseWriter, r *http.Request) {
	var in domain.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}

	rv, err := h.reviews.Create(r.Context(), middleware.UserID(r), &in)
	if err != nil {
		response.FromError(w, r, err, h.dev)
		return
	}
	response.WriteJSON(w, http.StatusCreated, rv)
}

func (h *ReviewHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := reviewID(w, r)
	if !ok {
		return
	}

	rv, err := h.reviews.Get(r.Context(), middleware.UserID(r), id)
	if err != nil {
		response.FromError(w, r, err, h.dev)
		return
	}
	response.WriteJSON(w, http.StatusOK, rv)
}

func (h *ReviewHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := reviewID(w, r)
	if !ok {
		return
	}
	var in domain.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}

	rv, err := h.reviews.Update(r.Context(), middleware.UserID(r), id, &in)
	if err != nil {
		response.FromError(w, r, err, h.dev)
		return
	}
	response.WriteJSON(w, http.StatusOK, rv)
}

func (h *ReviewHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := reviewID(w, r)
	if !ok {
		return
	}

	if err := h.reviews.Delete(r.Context(), middleware.UserID(r), id); err != nil {
		response.FromError(w, r, err, h.dev)
		return
	}
	response.WriteJSON(w, http.StatusOK, response.MessageResponse{Message: "Review deleted"})
}

func (h *ReviewHandler) list(w http.ResponseWriter, r *http.Request) {
	f, msg := parseReviewFilter(r)
	if msg != "" {
		response.BadRequest(w, msg)
		return
	}
	f.UserID = middleware.UserID(r)

	page, err := h.reviews.List(r.Context(), f)
	if err != nil {
		response.FromError(w, r, err, h.dev)
		return
	}
	response.WriteJSON(w, http.StatusOK, page)
}

// parseReviewFilter returns a non-empty message for malformed parameters.
func parseReviewFilter(r *http.Request) (domain.ReviewFilter, string) {
	q := r.URL.Query()
	var f domain.ReviewFilter

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > domain.MaxPage {
			return f, "page must be between 1 and 100000"
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > domain.MaxPageSize {
			return f, "limit must be between 1 and 100"
		}
		f.Limit = n
	}
	if v := q.Get("sort"); v != "" {
		switch s := domain.ReviewSort(v); s {
		case domain.SortByDate, domain.SortByRating, domain.SortByCreatedAt:
			f.Sort = s
		default:
			return f, "sort must be one of date, rating, created_at"
		}
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, "order must be asc or desc"
	}
	f.Flavor = q.Get("flavor")
	if v := q.Get("min_rating"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, "min_rating must be a number"
		}
		f.MinRating = &d
	}
	return f, ""
}
