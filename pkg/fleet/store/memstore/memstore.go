// Package memstore is an in-memory implementation of pkg/fleet/store's
// collaborator interfaces, used by tests and by the CLI's standalone mode.
//
// Grounded on _examples/ericcurtin-model-runner/pkg/inference/models/manager.go's
// constructor/locking idiom for an in-process manager guarding its state
// with a sync.RWMutex.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/refname"
)

// Store is an in-memory Storage + Keystore implementation.
type Store struct {
	mu          sync.RWMutex
	descriptors map[uuid.UUID]*model.Descriptor
	users       map[uuid.UUID]*model.User
	apiKeys     map[string]uuid.UUID
	requests    map[uuid.UUID]*model.Request
	secrets     map[string]string
}

// New returns a Store seeded with the factory descriptors and, if
// provided, a bootstrap superuser.
func New(superuser *model.User) *Store {
	s := &Store{
		descriptors: make(map[uuid.UUID]*model.Descriptor),
		users:       make(map[uuid.UUID]*model.User),
		apiKeys:     make(map[string]uuid.UUID),
		requests:    make(map[uuid.UUID]*model.Request),
		secrets:     make(map[string]string),
	}
	for _, d := range model.FactoryDescriptors() {
		s.descriptors[d.UUID] = d
	}
	if superuser != nil {
		s.users[superuser.ID] = superuser
		s.apiKeys[superuser.APIKey] = superuser.ID
	}
	return s
}

// SaveDescriptor registers d, first validating its organization/family_id/id
// triad as a well-formed distribution-style reference (spec.md §3: the
// descriptor's identity is validated at registration time).
func (s *Store) SaveDescriptor(ctx context.Context, d *model.Descriptor) error {
	if err := refname.Validate(d.Organization, d.FamilyID, d.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors[d.UUID] = d
	return nil
}

func (s *Store) GetDescriptor(ctx context.Context, modelUUID uuid.UUID) (*model.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[modelUUID]
	if !ok {
		return nil, fmt.Errorf("memstore: no descriptor with uuid %s", modelUUID)
	}
	return d, nil
}

func (s *Store) ListDescriptors(ctx context.Context) ([]*model.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Descriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.apiKeys[u.APIKey] = u.ID
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("memstore: no user with id %s", userID)
	}
	return u, nil
}

func (s *Store) GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.apiKeys[apiKey]
	if !ok {
		return nil, fmt.Errorf("memstore: no user with that api key")
	}
	return s.users[id], nil
}

func (s *Store) SaveRequest(ctx context.Context, r *model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
	return nil
}

func (s *Store) GetRequest(ctx context.Context, requestID uuid.UUID) (*model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("memstore: no request with id %s", requestID)
	}
	return r, nil
}

func (s *Store) ListPendingRequests(ctx context.Context) ([]*model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Request
	for _, r := range s.requests {
		if r.Status == model.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[name]
	if !ok {
		return "", fmt.Errorf("memstore: no secret named %q", name)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, name, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = secret
	return nil
}
