// Package verification issues and resolves the public verification codes printed
// on evidence pages. A code maps to a disclosed summary of one evidence instance
// and nothing else.
package verification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"portfolio/internal/verification/metrics"
	"portfolio/internal/verification/models"
	"portfolio/internal/verification/store"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/platform/audit"
	"portfolio/pkg/requestcontext"
)

// TokenLength is the number of base32 characters in a verification token.
const TokenLength = 20

const hkdfInfo = "portfolio verification token v1"

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Store interface {
	Create(ctx context.Context, rec models.Record) error
	FindByToken(ctx context.Context, token string) (models.Record, error)
	FindByInstance(ctx context.Context, instanceID id.InstanceID) (models.Record, error)
	DeleteByInstance(ctx context.Context, instanceID id.InstanceID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// IssueRequest describes the instance a record is issued for. Title and Category
// are the only descriptive values that will ever be disclosed.
type IssueRequest struct {
	UserID     id.UserID
	InstanceID id.InstanceID
	Title      string
	Category   string
	CreatedAt  time.Time
}

type Registry struct {
	store   Store
	key     []byte
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor AuditPublisher
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Registry) {
		r.auditor = p
	}
}

// New derives the token key from secret. The secret must be stable across
// restarts, otherwise printed codes stop matching newly rendered ones.
func New(st Store, secret string, opts ...Option) (*Registry, error) {
	if st == nil {
		return nil, errors.New("verification store is required")
	}
	if len(secret) < 16 {
		return nil, errors.New("verification secret must be at least 16 bytes")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive verification key: %w", err)
	}
	r := &Registry{
		store:  st,
		key:    key,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// TokenFor returns the token for an instance. The same instance always yields
// the same token under the same secret.
func (r *Registry) TokenFor(instanceID id.InstanceID) string {
	mac := hmac.New(sha256.New, r.key)
	mac.Write(instanceID[:])
	return tokenEncoding.EncodeToString(mac.Sum(nil))[:TokenLength]
}

// Issue creates the record for an instance, or returns the existing one.
func (r *Registry) Issue(ctx context.Context, req IssueRequest) (*models.Record, error) {
	if req.InstanceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "instance id required")
	}
	if existing, err := r.store.FindByInstance(ctx, req.InstanceID); err == nil {
		return &existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up verification record")
	}

	rec := models.Record{
		Token:      r.TokenFor(req.InstanceID),
		InstanceID: req.InstanceID,
		Title:      req.Title,
		Category:   req.Category,
		CreatedAt:  req.CreatedAt,
	}
	if err := r.store.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyUsed) {
			// lost a race with a concurrent issue for the same instance
			existing, findErr := r.store.FindByInstance(ctx, req.InstanceID)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load verification record")
			}
			return &existing, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue verification record")
	}

	if r.auditor != nil && !req.UserID.IsNil() {
		if err := r.auditor.Emit(ctx, audit.ComplianceEvent{
			UserID:    req.UserID,
			Subject:   rec.Token,
			Action:    string(audit.EventVerificationIssued),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit verification record")
		}
	}
	r.metrics.IncrementIssued()
	r.logger.InfoContext(ctx, "verification record issued",
		"request_id", requestcontext.RequestID(ctx),
		"instance_id", req.InstanceID,
	)
	return &rec, nil
}

// Resolve returns the disclosed summary for a token. Unknown, malformed and
// revoked tokens are indistinguishable to the caller.
func (r *Registry) Resolve(ctx context.Context, token string) (*models.Summary, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if !wellFormed(token) {
		r.metrics.IncrementLookup("not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, "verification code not found")
	}
	rec, err := r.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.metrics.IncrementLookup("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "verification code not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve verification code")
	}
	if !hmac.Equal([]byte(r.TokenFor(rec.InstanceID)), []byte(token)) {
		r.logger.WarnContext(ctx, "verification record does not match its instance",
			"request_id", requestcontext.RequestID(ctx),
		)
		r.metrics.IncrementLookup("not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, "verification code not found")
	}
	r.metrics.IncrementLookup("found")
	summary := rec.Summary()
	return &summary, nil
}

// Revoke removes the record of a deleted instance. Revoking an instance without a
// record is not an error.
func (r *Registry) Revoke(ctx context.Context, instanceID id.InstanceID) error {
	if err := r.store.DeleteByInstance(ctx, instanceID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke verification record")
	}
	return nil
}

func wellFormed(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	for _, c := range token {
		if (c < 'A' || c > 'Z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
