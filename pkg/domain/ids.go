package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "portfolio/pkg/domain-errors"
)

// Typed identifiers keep user, instance, and document IDs from being mixed up at
// compile time. All are UUIDs underneath.
type (
	UserID        uuid.UUID
	InstanceID    uuid.UUID
	TemplateID    uuid.UUID
	SubTemplateID uuid.UUID
	DocumentID    uuid.UUID
)

// maxIDLength bounds input before parsing; canonical UUIDs are 36 characters.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if len(s) > maxIDLength || strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseInstanceID(s string) (InstanceID, error) {
	u, err := parseUUID("evidence id", s)
	return InstanceID(u), err
}

func ParseTemplateID(s string) (TemplateID, error) {
	u, err := parseUUID("template id", s)
	return TemplateID(u), err
}

func ParseSubTemplateID(s string) (SubTemplateID, error) {
	u, err := parseUUID("sub-template id", s)
	return SubTemplateID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document id", s)
	return DocumentID(u), err
}

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id InstanceID) String() string    { return uuid.UUID(id).String() }
func (id TemplateID) String() string    { return uuid.UUID(id).String() }
func (id SubTemplateID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id InstanceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SubTemplateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id InstanceID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id TemplateID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

// MarshalText encodes an unset sub-template as an empty string.
func (id SubTemplateID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *InstanceID) UnmarshalText(b []byte) error {
	parsed, err := ParseInstanceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DocumentID) UnmarshalText(b []byte) error {
	parsed, err := ParseDocumentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TemplateID) UnmarshalText(b []byte) error {
	parsed, err := ParseTemplateID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SubTemplateID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = SubTemplateID{}
		return nil
	}
	parsed, err := ParseSubTemplateID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewInstanceID and NewDocumentID mint random identifiers.
func NewInstanceID() InstanceID { return InstanceID(uuid.New()) }
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }
