package admin

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

func TestSaveIntegration(t *testing.T) {
	var saved *marketplace.IntegrationConfig
	store := &mockIntegrationStore{
		UpsertFn: func(ctx context.Context, c *marketplace.IntegrationConfig) (*marketplace.IntegrationConfig, error) {
			saved = c
			out := *c
			return &out, nil
		},
	}
	svc := NewService(Deps{Integrations: store}, slog.Default())

	view, err := svc.SaveIntegration(context.Background(), "rest-1", "DoorDash", IntegrationInput{
		Enabled:              true,
		ExternalStoreID:      "dd-store-1",
		WebhookSigningSecret: "s3cret",
	})
	require.NoError(t, err)

	assert.Equal(t, marketplace.ProviderDoorDash, saved.Provider, "provider is normalized")
	assert.Equal(t, "s3cret", saved.WebhookSigningSecret)
	assert.True(t, view.HasSigningSecret)
	assert.True(t, view.AcceptsWebhooks)
	assert.Equal(t, "doordash", view.Provider)
}

func TestSaveIntegration_Invalid(t *testing.T) {
	svc := NewService(Deps{Integrations: &mockIntegrationStore{}}, slog.Default())

	tests := []struct {
		name     string
		provider string
		in       IntegrationInput
		wantErr  error
	}{
		{"unknown provider", "postmates", IntegrationInput{ExternalStoreID: "x"}, marketplace.ErrUnknownProvider},
		{"missing store id", "grubhub", IntegrationInput{Enabled: true}, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveIntegration(context.Background(), "rest-1", tt.provider, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestListIntegrations_HidesSecret(t *testing.T) {
	store := &mockIntegrationStore{
		ListFn: func(ctx context.Context, restaurantID string) ([]marketplace.IntegrationConfig, error) {
			return []marketplace.IntegrationConfig{
				{RestaurantID: restaurantID, Provider: marketplace.ProviderUberEats, Enabled: true, ExternalStoreID: "ue-1", WebhookSigningSecret: "hidden"},
				{RestaurantID: restaurantID, Provider: marketplace.ProviderGrubhub, Enabled: true, ExternalStoreID: "gh-1"},
			}, nil
		},
	}
	svc := NewService(Deps{Integrations: store}, slog.Default())

	out, err := svc.ListIntegrations(context.Background(), "rest-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].HasSigningSecret)
	assert.False(t, out[1].HasSigningSecret)
	assert.False(t, out[1].AcceptsWebhooks, "enabled without a secret cannot accept webhooks")
}

func TestSaveMapping_Validation(t *testing.T) {
	store := &mockMappingStore{
		UpsertFn: func(ctx context.Context, m *marketplace.MenuItemMapping) (*marketplace.MenuItemMapping, error) {
			out := *m
			out.ID = uuid.Must(uuid.NewV7())
			return &out, nil
		},
	}
	svc := NewService(Deps{Mappings: store}, slog.Default())

	tests := []struct {
		name    string
		in      MappingInput
		wantErr error
	}{
		{"valid", MappingInput{Provider: "ubereats", ExternalItemID: "ue-burger", MenuItemID: "menu-1"}, nil},
		{"unknown provider", MappingInput{Provider: "nope", ExternalItemID: "a", MenuItemID: "b"}, marketplace.ErrUnknownProvider},
		{"missing external id", MappingInput{Provider: "ubereats", MenuItemID: "b"}, ErrInvalidRequest},
		{"missing menu item", MappingInput{Provider: "ubereats", ExternalItemID: "a"}, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := svc.SaveMapping(context.Background(), "rest-1", tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "rest-1", m.RestaurantID)
			assert.False(t, m.ID.IsNil())
		})
	}
}

func TestDeleteMapping_InvalidID(t *testing.T) {
	svc := NewService(Deps{Mappings: &mockMappingStore{}}, slog.Default())
	err := svc.DeleteMapping(context.Background(), "rest-1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestListJobs_Filter(t *testing.T) {
	var got statussync.JobFilter
	queue := &mockJobQueue{
		ListFn: func(ctx context.Context, filter statussync.JobFilter) ([]marketplace.StatusSyncJob, error) {
			got = filter
			return nil, nil
		},
	}
	svc := NewService(Deps{Queue: queue}, slog.Default())

	jobs, err := svc.ListJobs(context.Background(), "rest-1", "dead_letter", "order-9", 25)
	require.NoError(t, err)
	assert.NotNil(t, jobs, "empty result encodes as []")
	assert.Equal(t, statussync.JobFilter{
		RestaurantID: "rest-1",
		Status:       marketplace.JobDeadLetter,
		OrderID:      "order-9",
		Limit:        25,
	}, got)

	_, err = svc.ListJobs(context.Background(), "rest-1", "stuck", "", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProcess_ScopedToRestaurant(t *testing.T) {
	proc := &mockProcessor{
		ProcessDueFn: func(ctx context.Context, limit int, restaurantID string) (worker.Result, error) {
			assert.Equal(t, "rest-1", restaurantID)
			assert.Equal(t, 10, limit)
			return worker.Result{Processed: 2, Succeeded: 2}, nil
		},
	}
	svc := NewService(Deps{Processor: proc}, slog.Default())

	res, err := svc.Process(context.Background(), "rest-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)

	_, err = svc.Process(context.Background(), "rest-1", maxProcessLimit+1)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTransitionOrder(t *testing.T) {
	orders := &mockTransitioner{
		TransitionOrderFn: func(ctx context.Context, restaurantID, orderID string, to marketplace.OrderStatus) (*marketplace.Transition, error) {
			if to == marketplace.StatusPending {
				return nil, marketplace.ErrConflict
			}
			return &marketplace.Transition{OrderID: orderID, From: marketplace.StatusConfirmed, To: to, Applied: true}, nil
		},
	}
	svc := NewService(Deps{Orders: orders}, slog.Default())

	tr, err := svc.TransitionOrder(context.Background(), "rest-1", "order-1", "READY")
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusReady, tr.To)

	_, err = svc.TransitionOrder(context.Background(), "rest-1", "order-1", "eaten")
	assert.ErrorIs(t, err, marketplace.ErrInvalidStatus)

	_, err = svc.TransitionOrder(context.Background(), "rest-1", "order-1", "pending")
	assert.True(t, errors.Is(err, marketplace.ErrConflict))
}
