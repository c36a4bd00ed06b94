// Package memory implements in-memory adapters for development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"healthsync/internal/domain"
)

// Ensure interfaces are met.
var _ domain.KeyValue = (*KV)(nil)
var _ domain.HealthStore = (*HealthStore)(nil)

// KV implements an in-memory key-value store. A MaxBlobBytes of zero
// means no size ceiling.
type KV struct {
	mu           sync.Mutex
	data         map[string][]byte
	MaxBlobBytes int

	// FailSaves makes every Save return the given error, for testing
	// torn-write behavior.
	FailSaves error
}

// NewKV creates an empty in-memory key-value store.
func NewKV() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Save stores blob under key. Over-ceiling blobs are rejected with
// ErrSizeExceeded and the previous value is left intact.
func (kv *KV) Save(key string, blob []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.FailSaves != nil {
		return kv.FailSaves
	}
	if kv.MaxBlobBytes > 0 && len(blob) > kv.MaxBlobBytes {
		return domain.ErrSizeExceeded
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	kv.data[key] = cp
	return nil
}

// Load returns the stored blob, or nil when the key is absent.
func (kv *KV) Load(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	blob, ok := kv.data[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, nil
}

// Remove deletes the key. Removing an absent key is not an error.
func (kv *KV) Remove(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

// HealthStore is a fake external health-data provider. Tests seed
// samples, flip authorization, inject failures, and fire change
// notifications synchronously via Notify.
type HealthStore struct {
	mu         sync.Mutex
	authorized bool
	samples    map[domain.Kind][]domain.RemoteSample
	observers  map[domain.Kind][]func()

	// DenyAuthorization makes RequestAuthorization fail.
	DenyAuthorization bool
	// FailFetches makes every FetchSamples return the given error.
	FailFetches error
	// FetchDelay stalls FetchSamples, for exercising overlap guards.
	FetchDelay time.Duration
}

// NewHealthStore creates an empty fake store.
func NewHealthStore() *HealthStore {
	return &HealthStore{
		samples:   make(map[domain.Kind][]domain.RemoteSample),
		observers: make(map[domain.Kind][]func()),
	}
}

// Seed adds samples without firing observers.
func (h *HealthStore) Seed(kind domain.Kind, samples ...domain.RemoteSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples[kind] = append(h.samples[kind], samples...)
}

// Remove deletes a seeded sample by ID without firing observers.
func (h *HealthStore) Remove(kind domain.Kind, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.samples[kind][:0]
	for _, s := range h.samples[kind] {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	h.samples[kind] = kept
}

// Notify fires all registered observers for the kind, synchronously.
func (h *HealthStore) Notify(kind domain.Kind) {
	h.mu.Lock()
	fns := make([]func(), len(h.observers[kind]))
	copy(fns, h.observers[kind])
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// RequestAuthorization grants access unless DenyAuthorization is set.
func (h *HealthStore) RequestAuthorization(ctx context.Context, kinds []domain.Kind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.DenyAuthorization {
		return domain.ErrUnauthorized
	}
	h.authorized = true
	return nil
}

// FetchSamples returns the seeded samples of the kind within [start, end),
// sorted ascending by timestamp.
func (h *HealthStore) FetchSamples(ctx context.Context, kind domain.Kind, start, end time.Time) ([]domain.RemoteSample, error) {
	h.mu.Lock()
	delay := h.FetchDelay
	h.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailFetches != nil {
		return nil, h.FailFetches
	}
	if !h.authorized {
		return nil, domain.ErrUnauthorized
	}
	out := make([]domain.RemoteSample, 0)
	for _, s := range h.samples[kind] {
		if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// SaveSample records a mirrored sample and fires observers synchronously.
func (h *HealthStore) SaveSample(ctx context.Context, kind domain.Kind, s domain.RemoteSample) error {
	h.mu.Lock()
	if !h.authorized {
		h.mu.Unlock()
		return domain.ErrUnauthorized
	}
	h.samples[kind] = append(h.samples[kind], s)
	h.mu.Unlock()
	h.Notify(kind)
	return nil
}

// DeleteSample removes a sample by ID and fires observers.
func (h *HealthStore) DeleteSample(ctx context.Context, kind domain.Kind, id string) error {
	h.mu.Lock()
	if !h.authorized {
		h.mu.Unlock()
		return domain.ErrUnauthorized
	}
	kept := h.samples[kind][:0]
	for _, s := range h.samples[kind] {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	h.samples[kind] = kept
	h.mu.Unlock()
	h.Notify(kind)
	return nil
}

// ObserveChanges registers a change callback for the kind.
func (h *HealthStore) ObserveChanges(kind domain.Kind, fn func()) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers[kind] = append(h.observers[kind], fn)
	idx := len(h.observers[kind]) - 1
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if idx < len(h.observers[kind]) {
			h.observers[kind][idx] = func() {}
		}
	}, nil
}
