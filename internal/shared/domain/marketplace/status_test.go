package marketplace

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_LifecycleOrder(t *testing.T) {
	ordered := []OrderStatus{
		StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusPickedUp, StatusCompleted, StatusCancelled,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Less(t, ordered[i-1].Rank(), ordered[i].Rank(), "%s before %s", ordered[i-1], ordered[i])
	}
	assert.Equal(t, -1, OrderStatus("bogus").Rank())
}

func TestAdvances(t *testing.T) {
	tests := []struct {
		name    string
		current OrderStatus
		next    OrderStatus
		want    bool
	}{
		{"forward", StatusConfirmed, StatusReady, true},
		{"same status", StatusReady, StatusReady, false},
		{"stale", StatusReady, StatusConfirmed, false},
		{"cancel after pickup", StatusPickedUp, StatusCancelled, true},
		{"unknown next", StatusPending, OrderStatus("lost"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Advances(tt.current, tt.next))
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus(" Picked_Up ")
	require.NoError(t, err)
	assert.Equal(t, StatusPickedUp, s)

	_, err = ParseOrderStatus("eaten")
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("UberEats")
	require.NoError(t, err)
	assert.Equal(t, ProviderUberEats, p)

	_, err = ParseProvider("postmates")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestOrigin_Provider(t *testing.T) {
	p, ok := OriginFor(ProviderGrubhub).Provider()
	assert.True(t, ok)
	assert.Equal(t, ProviderGrubhub, p)

	_, ok = OriginPOS.Provider()
	assert.False(t, ok)
}

func TestParseJobStatus(t *testing.T) {
	s, err := ParseJobStatus("dead_letter")
	require.NoError(t, err)
	assert.Equal(t, JobDeadLetter, s)
	assert.True(t, s.OperatorRetryable())
	assert.True(t, s.Terminal())

	assert.False(t, JobInProgress.OperatorRetryable())
	_, err = ParseJobStatus("DONE")
	assert.Error(t, err)
}

func TestNewStatusSyncJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job, err := NewStatusSyncJob(NewJobParams{
		RestaurantID:    "r-1",
		OrderID:         "o-1",
		Provider:        ProviderDoorDash,
		ExternalOrderID: "dd-1",
		TargetStatus:    StatusReady,
		MaxAttempts:     5,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, JobQueued, job.Status)
	assert.Equal(t, 0, job.AttemptCount)
	assert.Equal(t, now, job.NextAttemptAt)
	assert.Equal(t, job.ID.String(), job.TransitionKey)
	assert.False(t, job.Exhausted(4))
	assert.True(t, job.Exhausted(5))
}

func TestNewStatusSyncJob_Validation(t *testing.T) {
	base := NewJobParams{
		OrderID:         "o-1",
		Provider:        ProviderDoorDash,
		ExternalOrderID: "dd-1",
		TargetStatus:    StatusReady,
		MaxAttempts:     5,
	}

	tests := []struct {
		name   string
		mutate func(p *NewJobParams)
	}{
		{"missing order", func(p *NewJobParams) { p.OrderID = "" }},
		{"bad provider", func(p *NewJobParams) { p.Provider = "seamless" }},
		{"missing external id", func(p *NewJobParams) { p.ExternalOrderID = "" }},
		{"bad status", func(p *NewJobParams) { p.TargetStatus = "gone" }},
		{"no attempts", func(p *NewJobParams) { p.MaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := NewStatusSyncJob(p, time.Now())
			assert.Error(t, err)
		})
	}
}

func TestCanonicalEvent_Validate(t *testing.T) {
	valid := CanonicalEvent{
		Provider:        ProviderDoorDash,
		EventID:         "evt-1",
		ExternalOrderID: "ord-1",
		ExternalStoreID: "store-1",
		Status:          StatusConfirmed,
		Items:           []LineItem{{ExternalItemID: "sku-1", Quantity: 1, UnitPrice: 500}},
	}
	require.NoError(t, valid.Validate())

	missingStore := valid
	missingStore.ExternalStoreID = ""
	assert.True(t, errors.Is(missingStore.Validate(), ErrMalformedPayload))

	zeroQty := valid
	zeroQty.Items = []LineItem{{ExternalItemID: "sku-1", Quantity: 0}}
	assert.True(t, errors.Is(zeroQty.Validate(), ErrMalformedPayload))
}

func TestCanonicalEvent_ExternalItemIDs(t *testing.T) {
	e := CanonicalEvent{Items: []LineItem{
		{ExternalItemID: "a"}, {ExternalItemID: "b"}, {ExternalItemID: "a"}, {ExternalItemID: ""},
	}}
	assert.Equal(t, []string{"a", "b"}, e.ExternalItemIDs())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&DeliveryError{Provider: ProviderUberEats, StatusCode: 503, Retryable: true, Err: errors.New("unavailable")}))
	assert.False(t, IsRetryable(&DeliveryError{Provider: ProviderUberEats, StatusCode: 400, Err: errors.New("bad request")}))
	assert.False(t, IsRetryable(ErrUnsupportedStatus))
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.False(t, IsRetryable(nil))
}
