package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Persisted record keys.
const (
	StateKey   = "taskheatmap:state"
	RuntimeKey = "taskheatmap:runtime"
)

// Repository reads and writes the ledger and runtime snapshot through a KV.
// A nil KV is allowed: reads return defaults, ledger writes fail with
// ErrStorageUnavailable and runtime writes degrade to normalization only.
type Repository struct {
	kv KV
}

// NewRepository wraps kv, which may be nil.
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// Available reports whether a backend is configured.
func (r *Repository) Available() bool {
	return r != nil && r.kv != nil
}

// LoadLedger reads and decodes the ledger.
func (r *Repository) LoadLedger(ctx context.Context) (Ledger, error) {
	if !r.Available() {
		return NewLedger(), nil
	}
	rec, err := r.kv.Get(ctx, []string{StateKey})
	if err != nil {
		return Ledger{}, fmt.Errorf("load ledger: %w", err)
	}
	raw, ok := rec[StateKey]
	if !ok {
		return NewLedger(), nil
	}
	return DecodeLedger(raw), nil
}

// SaveLedger encodes and writes the ledger.
func (r *Repository) SaveLedger(ctx context.Context, l Ledger) error {
	if !r.Available() {
		return ErrStorageUnavailable
	}
	raw, err := EncodeLedger(l)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := r.kv.Set(ctx, map[string][]byte{StateKey: raw}); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// LoadRuntime reads the runtime snapshot; at is the default lastTimestamp.
func (r *Repository) LoadRuntime(ctx context.Context, at time.Time) (RuntimeSnapshot, error) {
	if !r.Available() {
		return DefaultRuntime(at), nil
	}
	rec, err := r.kv.Get(ctx, []string{RuntimeKey})
	if err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("load runtime: %w", err)
	}
	return DecodeRuntime(rec[RuntimeKey], at), nil
}

// SaveRuntime normalizes and writes the snapshot, returning what was written.
func (r *Repository) SaveRuntime(ctx context.Context, s RuntimeSnapshot, at time.Time) (RuntimeSnapshot, error) {
	normalized := NormalizeRuntime(s, at)
	if !r.Available() {
		return normalized, nil
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return normalized, fmt.Errorf("encode runtime: %w", err)
	}
	if err := r.kv.Set(ctx, map[string][]byte{RuntimeKey: raw}); err != nil {
		return normalized, fmt.Errorf("save runtime: %w", err)
	}
	return normalized, nil
}

// Purge deletes both records.
func (r *Repository) Purge(ctx context.Context) error {
	if !r.Available() {
		return ErrStorageUnavailable
	}
	if err := r.kv.Delete(ctx, []string{StateKey, RuntimeKey}); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	return nil
}
