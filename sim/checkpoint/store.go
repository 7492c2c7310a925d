package checkpoint

import (
	"context"
	"fmt"
)

// Store persists checkpoint records. Implementations are safe for concurrent use.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
