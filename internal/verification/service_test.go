package verification

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"portfolio/internal/verification/models"
	"portfolio/internal/verification/store"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	audit "portfolio/pkg/platform/audit"
	"portfolio/pkg/platform/audit/publishers/compliance"
	auditmemory "portfolio/pkg/platform/audit/store/memory"
)

// =============================================================================
// Verification Registry Test Suite
// =============================================================================
// The registry is the only public surface of the service, so its disclosure
// rules are pinned here rather than through HTTP tests.

const testSecret = "test-verification-secret-0123456789"

type RegistrySuite struct {
	suite.Suite
	store    *store.InMemoryStore
	audit    *auditmemory.InMemoryStore
	registry *Registry
	userID   id.UserID
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	s.userID = id.UserID(uuid.New())

	var err error
	s.registry, err = New(s.store, testSecret, WithAuditPublisher(compliance.New(s.audit)))
	s.Require().NoError(err)
}

func (s *RegistrySuite) issue(instanceID id.InstanceID) *models.Record {
	rec, err := s.registry.Issue(context.Background(), IssueRequest{
		UserID:     s.userID,
		InstanceID: instanceID,
		Title:      "Lesson study",
		Category:   "Standard 3",
		CreatedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	return rec
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *RegistrySuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, testSecret)
		s.Error(err)
		s.Contains(err.Error(), "store is required")
	})

	s.Run("short secret returns error", func() {
		_, err := New(s.store, "short")
		s.Error(err)
	})
}

// =============================================================================
// Token Derivation Tests
// =============================================================================

func (s *RegistrySuite) TestTokenFor() {
	instanceID := id.NewInstanceID()

	s.Run("deterministic for an instance", func() {
		s.Equal(s.registry.TokenFor(instanceID), s.registry.TokenFor(instanceID))
	})

	s.Run("stable across registries with the same secret", func() {
		other, err := New(store.NewInMemoryStore(), testSecret)
		s.Require().NoError(err)
		s.Equal(s.registry.TokenFor(instanceID), other.TokenFor(instanceID))
	})

	s.Run("differs across secrets", func() {
		other, err := New(store.NewInMemoryStore(), "another-secret-0123456789abcdef")
		s.Require().NoError(err)
		s.NotEqual(s.registry.TokenFor(instanceID), other.TokenFor(instanceID))
	})

	s.Run("differs across instances", func() {
		s.NotEqual(s.registry.TokenFor(instanceID), s.registry.TokenFor(id.NewInstanceID()))
	})

	s.Run("fixed length base32", func() {
		token := s.registry.TokenFor(instanceID)
		s.Len(token, TokenLength)
		s.True(wellFormed(token))
	})
}

// =============================================================================
// Issue Tests
// =============================================================================

func (s *RegistrySuite) TestIssue() {
	ctx := context.Background()

	s.Run("nil instance is rejected", func() {
		_, err := s.registry.Issue(ctx, IssueRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("issuing twice returns the original record", func() {
		instanceID := id.NewInstanceID()
		first := s.issue(instanceID)

		again, err := s.registry.Issue(ctx, IssueRequest{
			UserID:     s.userID,
			InstanceID: instanceID,
			Title:      "Renamed",
			Category:   "Other",
			CreatedAt:  time.Now(),
		})
		s.Require().NoError(err)
		s.Equal(*first, *again)
	})

	s.Run("concurrent issues converge on one record", func() {
		instanceID := id.NewInstanceID()
		var wg sync.WaitGroup
		tokens := make([]string, 8)
		for i := range tokens {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec, err := s.registry.Issue(ctx, IssueRequest{UserID: s.userID, InstanceID: instanceID, Title: "t"})
				s.NoError(err)
				if rec != nil {
					tokens[i] = rec.Token
				}
			}(i)
		}
		wg.Wait()
		for _, tok := range tokens {
			s.Equal(s.registry.TokenFor(instanceID), tok)
		}
	})

	s.Run("emits verification_issued once", func() {
		s.audit.Clear()
		instanceID := id.NewInstanceID()
		s.issue(instanceID)
		s.issue(instanceID)

		events, err := s.audit.ListByUser(ctx, s.userID)
		s.Require().NoError(err)
		s.Len(events, 1)
		s.Equal(string(audit.EventVerificationIssued), events[0].Action)
	})
}

// =============================================================================
// Resolve Tests
// =============================================================================

func (s *RegistrySuite) TestResolve() {
	ctx := context.Background()

	s.Run("unknown token returns not found", func() {
		_, err := s.registry.Resolve(ctx, s.registry.TokenFor(id.NewInstanceID()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed token returns not found", func() {
		for _, token := range []string{"", "abc", "!!!!!!!!!!!!!!!!!!!!", "AAAAAAAAAAAAAAAAAAAAAAAA"} {
			_, err := s.registry.Resolve(ctx, token)
			s.True(dErrors.HasCode(err, dErrors.CodeNotFound), token)
		}
	})

	s.Run("known token returns the disclosed summary", func() {
		instanceID := id.NewInstanceID()
		rec := s.issue(instanceID)

		summary, err := s.registry.Resolve(ctx, rec.Token)
		s.Require().NoError(err)
		s.Equal(rec.Token, summary.ID)
		s.Equal("Lesson study", summary.Title)
		s.Equal("Standard 3", summary.Category)
	})

	s.Run("lookup is case insensitive", func() {
		rec := s.issue(id.NewInstanceID())
		_, err := s.registry.Resolve(ctx, " "+lower(rec.Token)+" ")
		s.NoError(err)
	})

	s.Run("disclosed fields never include the user or instance", func() {
		instanceID := id.NewInstanceID()
		rec := s.issue(instanceID)
		summary, err := s.registry.Resolve(ctx, rec.Token)
		s.Require().NoError(err)

		raw, err := json.Marshal(summary)
		s.Require().NoError(err)
		var fields map[string]any
		s.Require().NoError(json.Unmarshal(raw, &fields))
		s.ElementsMatch([]string{"id", "title", "category", "created_at"}, keys(fields))
		s.NotContains(string(raw), s.userID.String())
		s.NotContains(string(raw), instanceID.String())
	})

	s.Run("tampered row is not disclosed", func() {
		instanceID := id.NewInstanceID()
		forged := models.Record{Token: s.registry.TokenFor(id.NewInstanceID()), InstanceID: instanceID, Title: "forged"}
		s.Require().NoError(s.store.Create(ctx, forged))

		_, err := s.registry.Resolve(ctx, forged.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Revoke Tests
// =============================================================================

func (s *RegistrySuite) TestRevoke() {
	ctx := context.Background()

	s.Run("revoked token resolves to not found", func() {
		instanceID := id.NewInstanceID()
		rec := s.issue(instanceID)

		s.Require().NoError(s.registry.Revoke(ctx, instanceID))
		_, err := s.registry.Resolve(ctx, rec.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("revoking an unknown instance is not an error", func() {
		s.NoError(s.registry.Revoke(ctx, id.NewInstanceID()))
	})
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
