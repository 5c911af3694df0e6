// Package store persists uploaded source files, their parsed maps and the
// annotations generated for their functions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors returned by every Store implementation.
var (
	ErrNotFound = errors.New("store: not found")
	ErrExists   = errors.New("store: already exists")
)

// SourceFile is an uploaded Python file. ParsedMap holds the encoded map and
// is never empty: a file that does not parse is never stored.
type SourceFile struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	FileName  string          `json:"fileName"`
	OwnerID   string          `json:"ownerId"`
	Content   string          `json:"content,omitempty"`
	ParsedMap json.RawMessage `json:"parsedMap,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Annotation is a generated explanation of one function of a file.
type Annotation struct {
	ID           string    `json:"id"`
	FileID       string    `json:"fileId"`
	OwnerID      string    `json:"ownerId"`
	FunctionName string    `json:"functionName"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the record persistence interface.
// Implementations: PGStore (PostgreSQL), MemStore.
type Store interface {
	io.Closer

	// CreateFile stores f, assigning ID and CreatedAt when they are unset.
	CreateFile(ctx context.Context, f *SourceFile) error
	GetFile(ctx context.Context, id string) (*SourceFile, error)
	// ListFiles returns an owner's files, oldest first.
	ListFiles(ctx context.Context, ownerID string) ([]SourceFile, error)
	// DeleteFile removes a file and its annotations.
	DeleteFile(ctx context.Context, id string) error

	// AddAnnotation stores a, assigning ID and CreatedAt when they are unset.
	// It fails with ErrNotFound when the file does not exist.
	AddAnnotation(ctx context.Context, a *Annotation) error
	GetAnnotation(ctx context.Context, id string) (*Annotation, error)
	// ListAnnotations returns a file's annotations, oldest first.
	ListAnnotations(ctx context.Context, fileID string) ([]Annotation, error)
}

// NewID returns a random UUID v4 string.
func NewID() string {
	return uuid.NewString()
}

// now is replaced in tests that need stable timestamps.
var now = func() time.Time { return time.Now().UTC() }

func stampFile(f *SourceFile) {
	if f.ID == "" {
		f.ID = NewID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now()
	}
}

func stampAnnotation(a *Annotation) {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
}
