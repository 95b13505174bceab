package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "portfolio/pkg/domain"
	audit "portfolio/pkg/platform/audit"
	"portfolio/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func (failingStore) ListByUser(context.Context, id.UserID) ([]audit.Event, error) {
	return nil, nil
}

func TestPublisher_Emit(t *testing.T) {
	userID := id.UserID(uuid.New())

	t.Run("persists event with derived category", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)

		err := pub.Emit(context.Background(), audit.ComplianceEvent{
			UserID:  userID,
			Subject: "instance",
			Action:  string(audit.EventEvidenceCreated),
		})
		require.NoError(t, err)

		events, err := store.ListByUser(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("rejects event without user", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		err := pub.Emit(context.Background(), audit.ComplianceEvent{Action: "x"})
		assert.Error(t, err)
	})

	t.Run("rejects event without action", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		err := pub.Emit(context.Background(), audit.ComplianceEvent{UserID: userID})
		assert.Error(t, err)
	})

	t.Run("store failure is returned to the caller", func(t *testing.T) {
		pub := New(failingStore{})
		err := pub.Emit(context.Background(), audit.ComplianceEvent{
			UserID: userID,
			Action: string(audit.EventEvidenceDeleted),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestAuditEventCategory(t *testing.T) {
	assert.Equal(t, audit.CategoryCompliance, audit.EventVerificationIssued.Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventDocumentGenerated.Category())
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("unknown").Category())
}
