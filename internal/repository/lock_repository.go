package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
)

// LockRepository takes PostgreSQL transaction-scoped advisory locks. Locks are released when the
// surrounding transaction commits or rolls back.
type LockRepository struct{}

// NewLockRepository builds repository.
func NewLockRepository() *LockRepository {
	return &LockRepository{}
}

// Acquire blocks until every key is locked. Keys are deduplicated and taken in sorted order so
// concurrent callers cannot deadlock on each other.
func (r *LockRepository) Acquire(ctx context.Context, exec sqlx.ExtContext, keys ...string) error {
	if exec == nil {
		return fmt.Errorf("advisory locks require a transaction")
	}
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	for _, key := range normalizeLockKeys(keys) {
		if _, err := exec.ExecContext(ctx, query, key); err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}
	return nil
}

func normalizeLockKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
