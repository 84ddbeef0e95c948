package store

import (
	"context"
	"fmt"

	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/conversation"
)

// Store is a closable durable turn store.
type Store interface {
	conversation.Store
	Close() error
}

// Open creates the backend selected by driver. The sqlite DSN is a
// database file path, the postgres DSN a connection URL; the memory
// driver ignores it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(ctx, dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
