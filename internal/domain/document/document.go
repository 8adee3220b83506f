package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/sonicweb/internal/domain"
)

// MaxDetailsSize is the maximum document text size in bytes.
const MaxDetailsSize = 163840 // 160KB

// Document is the stored text document (immutable value object).
// id is the opaque object identifier shared with the search index.
type Document struct {
	id        string
	details   string
	seq       int64
	createdAt time.Time
}

// New validates details and creates a Document with a fresh random identifier.
func New(details string) (Document, error) {
	return NewWithID(uuid.NewString(), details)
}

// NewWithID validates and creates a Document with the given identifier.
func NewWithID(id, details string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, fmt.Errorf("%w: object id %q is not a UUID", domain.ErrInvalidInput, id)
	}
	if strings.TrimSpace(details) == "" {
		return Document{}, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if len(details) > MaxDetailsSize {
		return Document{}, fmt.Errorf("%w: text too large (max %d bytes)", domain.ErrInvalidInput, MaxDetailsSize)
	}
	return Document{id: id, details: details}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, details string, seq int64, createdAt time.Time) Document {
	return Document{id: id, details: details, seq: seq, createdAt: createdAt}
}

// ID returns the object identifier.
func (d Document) ID() string { return d.id }

// Details returns the document text.
func (d Document) Details() string { return d.details }

// Seq returns the store-assigned sequence number (0 before insert).
func (d Document) Seq() int64 { return d.seq }

// CreatedAt returns the insert time (zero before insert).
func (d Document) CreatedAt() time.Time { return d.createdAt }

// IsValidID reports whether id can reference a stored document.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
