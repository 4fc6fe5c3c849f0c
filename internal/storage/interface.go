package storage

import (
	"context"
	"errors"

	"github.com/azure/brand-mentions-bot/internal/models"
)

// ErrMentionNotFound is returned when an update targets an id that does not exist
var ErrMentionNotFound = errors.New("mention not found")

// MentionStore defines the contract for the persistent mention table
type MentionStore interface {
	Initialize(ctx context.Context) error
	InsertIfAbsent(ctx context.Context, mention *models.Mention) (models.InsertResult, error)
	ListByBrand(ctx context.Context, brand string) ([]models.Mention, error)
	ListPending(ctx context.Context, brand string) ([]models.Mention, error)
	UpdateAnalysis(ctx context.Context, id int64, analysis models.Analysis) error
	Count(ctx context.Context, brand string) (total int, pending int, err error)
}

// SnapshotStore defines the contract for archiving serialized snapshots
type SnapshotStore interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}
