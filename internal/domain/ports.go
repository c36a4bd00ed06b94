package domain

import (
	"context"
	"time"
)

// HealthStore is the port for the external health-data provider. The core
// consumes it through this narrow read/write/observe surface and never
// implements it.
type HealthStore interface {
	// RequestAuthorization asks the store for read/write access to the
	// given kinds. ErrUnauthorized is returned on denial.
	RequestAuthorization(ctx context.Context, kinds []Kind) error

	// FetchSamples returns the store's records of one kind within
	// [start, end), converted to canonical units.
	FetchSamples(ctx context.Context, kind Kind, start, end time.Time) ([]RemoteSample, error)

	// SaveSample mirrors a locally recorded entry out to the store.
	SaveSample(ctx context.Context, kind Kind, s RemoteSample) error

	// DeleteSample removes a record the app previously mirrored out.
	DeleteSample(ctx context.Context, kind Kind, id string) error

	// ObserveChanges registers fn to run whenever the store's data of the
	// given kind changes. The returned stop function unregisters it.
	ObserveChanges(kind Kind, fn func()) (stop func(), err error)
}

// KeyValue is the port for durable snapshot persistence. Save must be
// atomic per key: a failed save leaves the previously persisted value
// intact. Load returns (nil, nil) when the key is absent.
type KeyValue interface {
	Save(key string, blob []byte) error
	Load(key string) ([]byte, error)
	Remove(key string) error
}
