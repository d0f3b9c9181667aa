package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"community-atlas/internal/models"
)

// Config holds the tunable analysis parameters. Invalid values are rejected
// at construction time, before any data is touched.
type Config struct {
	MinGapDays       int
	MaxGapDays       int
	MinFlowThreshold int
}

func (c Config) Validate() error {
	if c.MinGapDays < 0 {
		return errors.New("min gap days must be >= 0")
	}
	if c.MaxGapDays <= c.MinGapDays {
		return fmt.Errorf("max gap days (%d) must be greater than min gap days (%d)", c.MaxGapDays, c.MinGapDays)
	}
	if c.MinFlowThreshold < 0 {
		return errors.New("min flow threshold must be >= 0")
	}
	return nil
}

// SkipStats counts interval pairs that were examined but produced no event.
// These are observability counters, never errors.
type SkipStats struct {
	MissingTimestamp int
	OrderingViolated int
	GapOutOfRange    int
}

func (s SkipStats) Total() int {
	return s.MissingTimestamp + s.OrderingViolated + s.GapOutOfRange
}

func (s *SkipStats) Add(other SkipStats) {
	s.MissingTimestamp += other.MissingTimestamp
	s.OrderingViolated += other.OrderingViolated
	s.GapOutOfRange += other.GapOutOfRange
}

// Detector classifies ordered community pairs within one user's interval set
// as migration events. A migration requires the source community to be
// adopted strictly first, and the quiet gap between the user's last activity
// in the source and first activity in the destination to fall inside the
// configured window.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// DetectUser emits migration events for every qualifying ordered pair of
// distinct communities in one user's interval set. Pairs with missing
// timestamps, wrong ordering, or an out-of-window gap are skipped and
// counted. A user present in fewer than two communities yields nothing.
func (d *Detector) DetectUser(intervals []models.ActivityInterval) ([]models.MigrationEvent, SkipStats) {
	var events []models.MigrationEvent
	var skips SkipStats

	if len(intervals) < 2 {
		return nil, skips
	}

	for i, from := range intervals {
		for j, to := range intervals {
			if i == j || from.Community == to.Community {
				continue
			}

			if from.LastSeen.IsZero() || to.FirstSeen.IsZero() {
				skips.MissingTimestamp++
				continue
			}

			// source community must be adopted strictly first
			if !from.FirstSeen.Before(to.FirstSeen) {
				skips.OrderingViolated++
				continue
			}

			gap := daysBetween(from.LastSeen, to.FirstSeen)
			if gap < d.cfg.MinGapDays || gap > d.cfg.MaxGapDays {
				skips.GapOutOfRange++
				continue
			}

			events = append(events, models.MigrationEvent{
				User:          from.User,
				FromCommunity: from.Community,
				ToCommunity:   to.Community,
				GapDays:       gap,
				MigrationDate: to.FirstSeen,
				FromActivity:  from.PostCount,
				ToActivity:    to.PostCount,
			})
		}
	}

	return events, skips
}

// daysBetween returns the whole number of days from a to b, rounding toward
// negative infinity so that partial days before a never count as a full gap.
func daysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}
