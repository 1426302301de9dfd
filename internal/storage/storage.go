package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"tokenwarden/pkg/oauth"
)

// Adapter is the durable key/value contract the auth client persists its
// credential through.
//
// Implementations hold no expiry logic; whether a record is usable is decided
// by the caller. Get returns (nil, nil) for a missing key and Remove of a
// missing key is not an error.
type Adapter interface {
	Get(ctx context.Context, key string) (*oauth.TokenRecord, error)
	Set(ctx context.Context, key string, record *oauth.TokenRecord) error
	Remove(ctx context.Context, key string) error
}

// Store is an Adapter that owns resources which must be released.
type Store interface {
	Adapter
	io.Closer
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Options selects and configures a storage backend.
type Options struct {
	// Driver is one of DriverMemory, DriverFile or DriverSQLite.
	Driver string

	// Path is the token directory (file) or database file (sqlite).
	Path string

	// CacheTTL, when positive, puts a read-through CachedAdapter in front of
	// file and sqlite stores.
	CacheTTL time.Duration
}

// Open creates the Store described by opts.
func Open(opts Options) (Store, error) {
	var (
		store Store
		err   error
	)

	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		store, err = NewFileStore(opts.Path)
	case DriverSQLite:
		store, err = NewSQLiteStore(opts.Path)
	default:
		return nil, oauth.NewConfigurationError("storage.driver", fmt.Sprintf("unknown storage driver %q", opts.Driver))
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheTTL > 0 {
		return NewCachedAdapter(store, opts.CacheTTL, nil), nil
	}
	return store, nil
}

// cloneRecord returns a copy so callers cannot mutate stored state.
func cloneRecord(r *oauth.TokenRecord) *oauth.TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
