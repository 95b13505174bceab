package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"portfolio/internal/portfolio/models"
	"portfolio/internal/profile"
	"portfolio/internal/profile/store"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/testutil"
)

func TestProfileHandlers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(profile.New(store.NewInMemoryStore(), profile.WithLogger(logger)), logger).Register(r)
	userID := id.UserID(uuid.New())

	testutil.Given(t, "a user without a profile", func(t *testing.T) {
		testutil.When(t, "the profile is read", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.AsUser(testutil.NewRequest(t, http.MethodGet, "/profile"), userID))
			testutil.Then(t, "it is not found", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
			})
		})

		testutil.When(t, "a profile without a name is saved", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPut, "/profile", map[string]any{"school": "Al Noor"})
			rr := testutil.DoRequest(r, testutil.AsUser(req, userID))
			testutil.Then(t, "validation fails", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
			})
		})

		testutil.When(t, "a profile is saved", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPut, "/profile", map[string]any{
				"name":     "  Huda Salem ",
				"stage":    "primary",
				"subjects": []string{"math", " ", "science", "Math ", "SCIENCE"},
			})
			rr := testutil.DoRequest(r, testutil.AsUser(req, userID))
			testutil.Then(t, "the normalized profile is returned", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				got := testutil.UnmarshalResponse[models.UserProfile](t, rr)
				assert.Equal(t, "Huda Salem", got.Name)
				testutil.And(t, "subjects repeated in another case are dropped", func(t *testing.T) {
					assert.Equal(t, []string{"math", "science"}, got.Subjects)
				})
			})
		})
	})

	testutil.Given(t, "an unauthenticated request", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/profile"))
		testutil.Then(t, "it is unauthorized", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		})
	})
}
