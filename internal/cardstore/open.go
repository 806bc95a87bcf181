package cardstore

import (
	"context"
	"fmt"
)

// Config selects and configures a backend for Open.
type Config struct {
	Backend    string
	Dir        string
	SQLitePath string
	R2         R2Config
	Redis      RedisConfig
}

// Open returns the store named by cfg.Backend. An empty backend means embedded.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendEmbedded:
		return NewEmbedded(), nil
	case BackendDir:
		return storeOrErr(NewDir(cfg.Dir))
	case BackendSQLite:
		return storeOrErr(OpenSQLite(ctx, cfg.SQLitePath))
	case BackendR2:
		return storeOrErr(NewR2(ctx, cfg.R2))
	case BackendRedis:
		return storeOrErr(NewRedis(ctx, cfg.Redis))
	default:
		return nil, fmt.Errorf("cardstore: unknown backend %q", cfg.Backend)
	}
}

// storeOrErr keeps a nil concrete pointer from becoming a non-nil Store.
func storeOrErr[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenWriter is like Open but requires a writable backend.
func OpenWriter(ctx context.Context, cfg Config) (Writer, error) {
	s, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	w, ok := s.(Writer)
	if !ok {
		_ = s.Close()
		return nil, fmt.Errorf("cardstore: backend %q is read-only", s.Name())
	}
	return w, nil
}
