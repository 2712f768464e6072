package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsFactoryDescriptors(t *testing.T) {
	s := New(nil)
	descriptors, err := s.ListDescriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, len(model.FactoryDescriptors()))
}

func TestUserRoundTripByAPIKey(t *testing.T) {
	s := New(nil)
	u := &model.User{ID: uuid.New(), Name: "alice", APIKey: "key-123"}
	require.NoError(t, s.SaveUser(context.Background(), u))

	got, err := s.GetUserByAPIKey(context.Background(), "key-123")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestListPendingRequestsFiltersByStatus(t *testing.T) {
	s := New(nil)
	pending := &model.Request{ID: uuid.New(), Status: model.RequestPending}
	approved := &model.Request{ID: uuid.New(), Status: model.RequestApproved}
	require.NoError(t, s.SaveRequest(context.Background(), pending))
	require.NoError(t, s.SaveRequest(context.Background(), approved))

	got, err := s.ListPendingRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, pending.ID, got[0].ID)
}
