// Package reminder finds plants whose watering is overdue.
//
// A plant is overdue when now >= last_watered + watering_frequency days.
// Both sides are compared in UTC. A plant that has never been watered has
// no due date and is never reported.
//
// The scanner only reports. Delivery is a WARN log line per plant plus the
// plantcare_overdue_plants gauge; nothing is e-mailed or pushed.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sakif/houseplant-tracker/internal/model"
)

// WateredPlantLister is the one query the scanner needs.
type WateredPlantLister interface {
	ListWateredPlants(ctx context.Context) ([]model.Plant, error)
}

// OverdueNotice describes one plant that needs watering.
type OverdueNotice struct {
	PlantID   string    `json:"plantId"`
	PlantName string    `json:"plantName"`
	OwnerID   string    `json:"ownerId"`
	Due       time.Time `json:"due"`
}

// Scanner checks every watered plant against its schedule.
type Scanner struct {
	plants  WateredPlantLister
	logger  *slog.Logger
	overdue prometheus.Gauge
}

// NewScanner registers the overdue gauge on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewScanner(plants WateredPlantLister, logger *slog.Logger, reg prometheus.Registerer) *Scanner {
	return &Scanner{
		plants: plants,
		logger: logger,
		overdue: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "plantcare_overdue_plants",
			Help: "Number of plants overdue for watering at the last scan",
		}),
	}
}

// Overdue reports whether p is due at now, and when it was due.
func Overdue(p *model.Plant, now time.Time) (time.Time, bool) {
	due, ok := p.NextWatering()
	if !ok {
		return time.Time{}, false
	}
	due = due.UTC()
	return due, !now.UTC().Before(due)
}

// Scan reads all watered plants once and returns those overdue at now.
// It never writes.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]OverdueNotice, error) {
	plants, err := s.plants.ListWateredPlants(ctx)
	if err != nil {
		return nil, fmt.Errorf("reminder: listing watered plants: %w", err)
	}

	notices := make([]OverdueNotice, 0)
	for i := range plants {
		p := &plants[i]
		due, overdue := Overdue(p, now)
		if !overdue {
			continue
		}
		notices = append(notices, OverdueNotice{
			PlantID:   p.ID,
			PlantName: p.Name,
			OwnerID:   p.OwnerID,
			Due:       due,
		})
		s.logger.Warn("plant needs watering",
			slog.String("plantID", p.ID),
			slog.String("plant", p.Name),
			slog.String("ownerID", p.OwnerID),
			slog.Time("due", due),
		)
	}

	s.overdue.Set(float64(len(notices)))
	s.logger.Info("reminder scan finished",
		slog.Int("checked", len(plants)),
		slog.Int("overdue", len(notices)),
	)
	return notices, nil
}

// Run is Scan bound to the wall clock, shaped for scheduler.Runner.
func (s *Scanner) Run(ctx context.Context) {
	if _, err := s.Scan(ctx, time.Now()); err != nil {
		s.logger.Error("reminder scan failed", slog.String("error", err.Error()))
	}
}
