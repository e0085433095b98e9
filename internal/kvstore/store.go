// Package kvstore persists JSON documents under string keys. It is the
// storage collaborator behind the lead store and the outbound throttle.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPersistence wraps every backend failure so callers can degrade
// gracefully instead of inspecting driver errors.
var ErrPersistence = errors.New("kvstore: persistence failure")

// Store loads and saves JSON-encodable values.
type Store interface {
	// Load decodes the value stored under key into dst. found is false when
	// the key has never been saved; dst is left untouched in that case.
	Load(ctx context.Context, key string, dst any) (found bool, err error)
	Save(ctx context.Context, key string, value any) error
}

func persistErr(op, key string, err error) error {
	return fmt.Errorf("kvstore: %s %q: %w: %w", op, key, ErrPersistence, err)
}

func encode(key string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, persistErr("encode", key, err)
	}
	return raw, nil
}

func decode(key string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return persistErr("decode", key, err)
	}
	return nil
}
