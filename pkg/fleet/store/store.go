// Package store defines the narrow collaborator interfaces fleetd's core
// depends on and nothing else: Storage, Keystore, Downloader (spec.md §6).
// Production deployments back these with the out-of-scope front door; this
// package also ships an in-memory reference implementation (see memstore)
// used by tests and by the CLI's standalone mode.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
)

// Storage persists the Model Descriptor / Session / History Item / User /
// Request records fleetd's core reads and writes.
type Storage interface {
	SaveDescriptor(ctx context.Context, d *model.Descriptor) error
	GetDescriptor(ctx context.Context, modelUUID uuid.UUID) (*model.Descriptor, error)
	ListDescriptors(ctx context.Context) ([]*model.Descriptor, error)

	SaveUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error)

	SaveRequest(ctx context.Context, r *model.Request) error
	GetRequest(ctx context.Context, requestID uuid.UUID) (*model.Request, error)
	ListPendingRequests(ctx context.Context) ([]*model.Request, error)
}

// Keystore holds secrets referenced by Model Descriptor config (e.g. an
// api_key_ref), never the raw secret value itself.
type Keystore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, secret string) error
}

// Downloader fetches a model named by a registry index entry, publishing
// progress on the external event bus's "downloads" channel (spec.md §6),
// and returns the new model's UUID once the descriptor has been persisted.
type Downloader interface {
	Download(ctx context.Context, entryID string) (uuid.UUID, error)
}
