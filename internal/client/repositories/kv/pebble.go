package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type PebbleRepository struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a Pebble store in dir.
func OpenPebble(dir string, opts *pebble.Options) (*PebbleRepository, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dir, err)
	}
	return &PebbleRepository{db: db}, nil
}

func NewPebbleRepository(db *pebble.DB) *PebbleRepository {
	return &PebbleRepository{db: db}
}

func (r *PebbleRepository) Get(_ context.Context, key string) ([]byte, error) {
	v, closer, err := r.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (r *PebbleRepository) Set(_ context.Context, key string, value []byte) error {
	if err := r.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to set kv[%s]: %w", key, err)
	}
	return nil
}

func (r *PebbleRepository) Delete(_ context.Context, key string) error {
	if err := r.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	return nil
}

func (r *PebbleRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, closer, err := r.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check kv[%s]: %w", key, err)
	}
	closer.Close()
	return true, nil
}

func (r *PebbleRepository) List(_ context.Context, prefix string) ([]string, error) {
	opts := &pebble.IterOptions{LowerBound: []byte(prefix)}
	if upper := prefixUpperBound([]byte(prefix)); upper != nil {
		opts.UpperBound = upper
	}
	it, err := r.db.NewIter(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list kv: %w", err)
	}
	defer it.Close()

	var keys []string
	for it.First(); it.Valid(); it.Next() {
		if !bytes.HasPrefix(it.Key(), []byte(prefix)) {
			break
		}
		keys = append(keys, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate kv: %w", err)
	}
	return keys, nil
}

func (r *PebbleRepository) Close() error {
	return r.db.Close()
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when no such key exists.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
