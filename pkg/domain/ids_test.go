package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "portfolio/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseInstanceID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseDocumentID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

// TestParseID_SecurityInvariants validates parsing rules at the HTTP boundary.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE evidence;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInstanceID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestTemplateID_JSON(t *testing.T) {
	var payload struct {
		TemplateID TemplateID `json:"template_id"`
	}
	raw := uuid.New()
	require.NoError(t, json.Unmarshal([]byte(`{"template_id":"`+raw.String()+`"}`), &payload))
	assert.Equal(t, TemplateID(raw), payload.TemplateID)

	err := json.Unmarshal([]byte(`{"template_id":"bogus"}`), &payload)
	require.Error(t, err)
}

func TestSubTemplateID_JSON(t *testing.T) {
	var payload struct {
		SubTemplateID SubTemplateID `json:"sub_template_id"`
	}
	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sub_template_id":""}`, string(out))

	require.NoError(t, json.Unmarshal(out, &payload))
	assert.True(t, payload.SubTemplateID.IsNil())

	raw := uuid.New()
	payload.SubTemplateID = SubTemplateID(raw)
	out, err = json.Marshal(payload)
	require.NoError(t, err)
	payload.SubTemplateID = SubTemplateID{}
	require.NoError(t, json.Unmarshal(out, &payload))
	assert.Equal(t, SubTemplateID(raw), payload.SubTemplateID)
}

func TestInstanceID_JSONRoundTrip(t *testing.T) {
	want := NewInstanceID()
	out, err := json.Marshal(want)
	require.NoError(t, err)

	var got InstanceID
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, want, got)
}
