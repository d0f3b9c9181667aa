package pipeline

import (
	"testing"

	"community-atlas/internal/models"
)

func event(user, from, to string, gap, migrationDay int) models.MigrationEvent {
	return models.MigrationEvent{
		User:          user,
		FromCommunity: from,
		ToCommunity:   to,
		GapDays:       gap,
		MigrationDate: day(migrationDay),
	}
}

func TestAggregateFlows_SingleGroup(t *testing.T) {
	flows := AggregateFlows([]models.MigrationEvent{
		event("a", "keto", "fitness", 10, 0),
		event("b", "keto", "fitness", 20, 30),
		event("c", "keto", "fitness", 30, 60),
	})

	if len(flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(flows))
	}

	flow, ok := flows["keto->fitness"]
	if !ok {
		t.Fatal("missing keto->fitness flow")
	}

	if flow.TotalUsers != 3 {
		t.Errorf("expected total_users 3, got %d", flow.TotalUsers)
	}
	if flow.AvgTimeGap != 20.0 {
		t.Errorf("expected avg 20.0, got %v", flow.AvgTimeGap)
	}
	if flow.MedianTimeGap != 20.0 {
		t.Errorf("expected median 20.0, got %v", flow.MedianTimeGap)
	}
	if flow.MinTimeGap != 10 || flow.MaxTimeGap != 30 {
		t.Errorf("expected min/max 10/30, got %d/%d", flow.MinTimeGap, flow.MaxTimeGap)
	}
	// 3 events over 60 days = 1.5 per 30-day period
	if flow.MigrationVelocity != 1.5 {
		t.Errorf("expected velocity 1.5, got %v", flow.MigrationVelocity)
	}
}

func TestAggregateFlows_ZeroSpanVelocity(t *testing.T) {
	flows := AggregateFlows([]models.MigrationEvent{
		event("a", "keto", "fitness", 10, 5),
		event("b", "keto", "fitness", 12, 5),
	})

	flow := flows["keto->fitness"]
	if flow.MigrationVelocity != 2 {
		t.Errorf("zero span should use raw count, got %v", flow.MigrationVelocity)
	}
}

func TestAggregateFlows_SeparatesDirections(t *testing.T) {
	flows := AggregateFlows([]models.MigrationEvent{
		event("a", "keto", "fitness", 10, 0),
		event("b", "fitness", "keto", 20, 10),
	})

	if len(flows) != 2 {
		t.Fatalf("expected 2 flows, got %d", len(flows))
	}
	if flows["keto->fitness"].TotalUsers != 1 || flows["fitness->keto"].TotalUsers != 1 {
		t.Error("directions must aggregate separately")
	}
}

func TestAggregateFlows_Empty(t *testing.T) {
	flows := AggregateFlows(nil)
	if len(flows) != 0 {
		t.Errorf("expected empty map, got %d entries", len(flows))
	}
}

func TestAggregateFlows_StatBounds(t *testing.T) {
	flows := AggregateFlows([]models.MigrationEvent{
		event("a", "art", "design", 7, 0),
		event("b", "art", "design", 90, 15),
		event("c", "art", "design", 33, 200),
		event("d", "art", "design", 15, 120),
	})

	flow := flows["art->design"]
	if flow.AvgTimeGap < float64(flow.MinTimeGap) || flow.AvgTimeGap > float64(flow.MaxTimeGap) {
		t.Errorf("avg %v outside [%d, %d]", flow.AvgTimeGap, flow.MinTimeGap, flow.MaxTimeGap)
	}
	if flow.MedianTimeGap < float64(flow.MinTimeGap) || flow.MedianTimeGap > float64(flow.MaxTimeGap) {
		t.Errorf("median %v outside [%d, %d]", flow.MedianTimeGap, flow.MinTimeGap, flow.MaxTimeGap)
	}
	// even count: median is the midpoint of 15 and 33
	if flow.MedianTimeGap != 24.0 {
		t.Errorf("expected median 24.0, got %v", flow.MedianTimeGap)
	}
	if flow.AvgTimeGap != 36.3 {
		t.Errorf("expected avg 36.3, got %v", flow.AvgTimeGap)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want float64
	}{
		{"odd", []int{30, 10, 20}, 20},
		{"even", []int{10, 30, 20, 40}, 25},
		{"single", []int{7}, 7},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.in); got != tt.want {
				t.Errorf("median(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
