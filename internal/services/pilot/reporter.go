// Package pilot reports whether a restaurant's marketplace integration is
// healthy enough to move past the pilot phase.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// ErrInvalidWindow is returned for a window outside 1..MaxWindowHours.
var ErrInvalidWindow = errors.New("invalid reporting window")

const (
	DefaultWindowHours = 168
	MaxWindowHours     = 24 * 90
)

// Thresholds gate rolloutReady.
type Thresholds struct {
	MinOrders      int
	MinSuccessRate float64
}

// Summary is the pilot health report for one restaurant.
type Summary struct {
	RestaurantID  string     `json:"restaurantId"`
	Provider      string     `json:"provider,omitempty"`
	WindowHours   int        `json:"windowHours"`
	TotalOrders   int        `json:"totalOrders"`
	TotalJobs     int        `json:"totalJobs"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	DeadLettered  int        `json:"deadLettered"`
	Pending       int        `json:"pending"`
	SuccessRate   float64    `json:"successRate"`
	AvgAttempts   float64    `json:"avgAttempts"`
	LastFailureAt *time.Time `json:"lastFailureAt"`
	RolloutReady  bool       `json:"rolloutReady"`
	Reasons       []string   `json:"reasons"`
	GeneratedAt   time.Time  `json:"generatedAt"`
}

// Reporter builds pilot summaries.
type Reporter struct {
	stats      StatsReader
	thresholds Thresholds
	logger     *slog.Logger
}

// NewReporter creates a Reporter.
func NewReporter(stats StatsReader, thresholds Thresholds, logger *slog.Logger) *Reporter {
	return &Reporter{
		stats:      stats,
		thresholds: thresholds,
		logger:     logger.With("component", "pilot-reporter"),
	}
}

// Summary reports on the last windowHours hours. Zero selects the default
// window; an empty provider covers every marketplace.
func (r *Reporter) Summary(ctx context.Context, restaurantID string, provider marketplace.Provider, windowHours int) (*Summary, error) {
	if windowHours == 0 {
		windowHours = DefaultWindowHours
	}
	if windowHours < 0 || windowHours > MaxWindowHours {
		return nil, fmt.Errorf("%w: windowHours must be between 1 and %d", ErrInvalidWindow, MaxWindowHours)
	}

	now := clock.Now()
	st, err := r.stats.Stats(ctx, restaurantID, provider, now.Add(-time.Duration(windowHours)*time.Hour))
	if err != nil {
		return nil, err
	}

	s := &Summary{
		RestaurantID:  restaurantID,
		Provider:      string(provider),
		WindowHours:   windowHours,
		TotalOrders:   st.TotalOrders,
		TotalJobs:     st.TotalJobs,
		Succeeded:     st.Succeeded,
		Failed:        st.Failed,
		DeadLettered:  st.DeadLettered,
		Pending:       st.Pending,
		AvgAttempts:   round(st.AvgAttempts),
		LastFailureAt: st.LastFailureAt,
		Reasons:       []string{},
		GeneratedAt:   now,
	}
	if finished := st.Succeeded + st.Failed + st.DeadLettered; finished > 0 {
		s.SuccessRate = round(float64(st.Succeeded) / float64(finished))
	}

	if s.TotalOrders < r.thresholds.MinOrders {
		s.Reasons = append(s.Reasons, fmt.Sprintf("only %d orders in window, need %d", s.TotalOrders, r.thresholds.MinOrders))
	}
	if s.Succeeded+s.Failed+s.DeadLettered == 0 {
		s.Reasons = append(s.Reasons, "no finished status sync jobs in window")
	} else if s.SuccessRate < r.thresholds.MinSuccessRate {
		s.Reasons = append(s.Reasons, fmt.Sprintf("success rate %.2f below %.2f", s.SuccessRate, r.thresholds.MinSuccessRate))
	}
	if s.DeadLettered > 0 {
		s.Reasons = append(s.Reasons, fmt.Sprintf("%d dead-lettered jobs need attention", s.DeadLettered))
	}
	s.RolloutReady = len(s.Reasons) == 0

	r.logger.Debug("pilot summary computed",
		"restaurant_id", restaurantID,
		"provider", provider,
		"rollout_ready", s.RolloutReady,
	)
	return s, nil
}

func round(f float64) float64 {
	return math.Round(f*10000) / 10000
}
