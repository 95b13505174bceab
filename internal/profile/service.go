// Package profile manages the teacher identity printed on the portfolio cover.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"portfolio/internal/portfolio/models"
	"portfolio/internal/profile/store"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	platformstrings "portfolio/pkg/platform/strings"
	"portfolio/pkg/requestcontext"
)

const (
	maxFieldLength = 200
	maxSubjects    = 10
)

type Store interface {
	Upsert(ctx context.Context, p models.UserProfile) error
	FindByUser(ctx context.Context, userID id.UserID) (models.UserProfile, error)
}

// UpsertRequest carries the editable profile fields.
type UpsertRequest struct {
	Name     string   `json:"name"`
	School   string   `json:"school"`
	Stage    string   `json:"stage"`
	Subjects []string `json:"subjects"`
}

// Normalize trims whitespace and drops empty subjects and subjects that
// repeat an earlier one ignoring case.
func (r *UpsertRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.School = strings.TrimSpace(r.School)
	r.Stage = strings.TrimSpace(r.Stage)
	r.Subjects = platformstrings.DedupeFold(r.Subjects)
}

func (r *UpsertRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	for _, v := range []string{r.Name, r.School, r.Stage} {
		if utf8.RuneCountInString(v) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, "profile field too long")
		}
	}
	if len(r.Subjects) > maxSubjects {
		return dErrors.New(dErrors.CodeValidation, "too many subjects")
	}
	return nil
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert creates or replaces the user's profile.
func (s *Service) Upsert(ctx context.Context, userID id.UserID, req UpsertRequest) (models.UserProfile, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.UserProfile{}, err
	}
	p := models.UserProfile{
		UserID:    userID,
		Name:      req.Name,
		School:    req.School,
		Stage:     req.Stage,
		Subjects:  req.Subjects,
		UpdatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Upsert(ctx, p); err != nil {
		return models.UserProfile{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
	}
	s.logger.InfoContext(ctx, "profile saved",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
	)
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (models.UserProfile, error) {
	p, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.UserProfile{}, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return models.UserProfile{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return p, nil
}
