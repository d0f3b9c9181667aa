package pipeline

import (
	"testing"
	"time"

	"community-atlas/internal/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return day0.Add(time.Duration(n) * 24 * time.Hour)
}

func interval(user, community string, posts, first, last int) models.ActivityInterval {
	return models.ActivityInterval{
		User:      user,
		Community: community,
		PostCount: posts,
		FirstSeen: day(first),
		LastSeen:  day(last),
	}
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(Config{MinGapDays: 7, MaxGapDays: 180, MinFlowThreshold: 5})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestDetectUser_SingleMigration(t *testing.T) {
	d := newTestDetector(t)

	events, skips := d.DetectUser([]models.ActivityInterval{
		interval("alice", "keto", 4, 0, 5),
		interval("alice", "fitness", 6, 20, 40),
	})

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.FromCommunity != "keto" || ev.ToCommunity != "fitness" {
		t.Errorf("expected keto->fitness, got %s->%s", ev.FromCommunity, ev.ToCommunity)
	}
	if ev.GapDays != 15 {
		t.Errorf("expected gap 15, got %d", ev.GapDays)
	}
	if !ev.MigrationDate.Equal(day(20)) {
		t.Errorf("expected migration date %v, got %v", day(20), ev.MigrationDate)
	}
	if ev.FromActivity != 4 || ev.ToActivity != 6 {
		t.Errorf("expected activity 4/6, got %d/%d", ev.FromActivity, ev.ToActivity)
	}

	// reverse direction fails ordering, gets counted
	if skips.OrderingViolated != 1 {
		t.Errorf("expected 1 ordering skip, got %d", skips.OrderingViolated)
	}
}

func TestDetectUser_OrderingViolated(t *testing.T) {
	d := newTestDetector(t)

	// destination adopted before the source: no migration either way
	events, _ := d.DetectUser([]models.ActivityInterval{
		interval("alice", "keto", 4, 5, 10),
		interval("alice", "fitness", 6, 3, 40),
	})

	for _, ev := range events {
		if ev.FromCommunity == "keto" {
			t.Errorf("unexpected keto->fitness event: %+v", ev)
		}
	}
}

func TestDetectUser_GapWindow(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name     string
		lastSeen int
		toFirst  int
		want     int
	}{
		{"gap below min", 0, 6, 0},
		{"gap at min", 0, 7, 1},
		{"gap at max", 0, 180, 1},
		{"gap above max", 0, 181, 0},
		{"negative gap", 30, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, _ := d.DetectUser([]models.ActivityInterval{
				interval("bob", "keto", 3, -10, tt.lastSeen),
				interval("bob", "fitness", 5, tt.toFirst, tt.toFirst+10),
			})

			count := 0
			for _, ev := range events {
				if ev.FromCommunity == "keto" && ev.ToCommunity == "fitness" {
					count++
				}
			}
			if count != tt.want {
				t.Errorf("expected %d keto->fitness events, got %d", tt.want, count)
			}
		})
	}
}

func TestDetectUser_MissingTimestampSkipped(t *testing.T) {
	d := newTestDetector(t)

	broken := interval("carol", "keto", 4, 0, 5)
	broken.LastSeen = time.Time{}

	events, skips := d.DetectUser([]models.ActivityInterval{
		broken,
		interval("carol", "fitness", 6, 20, 40),
	})

	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	if skips.MissingTimestamp == 0 {
		t.Error("expected missing timestamp skips to be counted")
	}
}

func TestDetectUser_SingleCommunity(t *testing.T) {
	d := newTestDetector(t)

	events, skips := d.DetectUser([]models.ActivityInterval{
		interval("dave", "keto", 10, 0, 30),
	})

	if len(events) != 0 || skips.Total() != 0 {
		t.Errorf("single community should yield nothing, got %d events, %d skips", len(events), skips.Total())
	}
}

func TestDetectUser_InvariantsHold(t *testing.T) {
	d := newTestDetector(t)

	events, _ := d.DetectUser([]models.ActivityInterval{
		interval("erin", "keto", 4, 0, 5),
		interval("erin", "fitness", 6, 20, 40),
		interval("erin", "running", 2, 60, 90),
	})

	for _, ev := range events {
		if ev.FromCommunity == ev.ToCommunity {
			t.Errorf("self-migration emitted: %+v", ev)
		}
		if ev.GapDays < 7 || ev.GapDays > 180 {
			t.Errorf("gap out of window: %+v", ev)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{MinGapDays: 7, MaxGapDays: 180, MinFlowThreshold: 5}, false},
		{"zero min gap", Config{MinGapDays: 0, MaxGapDays: 1, MinFlowThreshold: 0}, false},
		{"negative min gap", Config{MinGapDays: -1, MaxGapDays: 180, MinFlowThreshold: 5}, true},
		{"max equals min", Config{MinGapDays: 7, MaxGapDays: 7, MinFlowThreshold: 5}, true},
		{"max below min", Config{MinGapDays: 30, MaxGapDays: 7, MinFlowThreshold: 5}, true},
		{"negative threshold", Config{MinGapDays: 7, MaxGapDays: 180, MinFlowThreshold: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	if got := daysBetween(day(5), day(20)); got != 15 {
		t.Errorf("expected 15, got %d", got)
	}
	if got := daysBetween(day(20), day(5)); got != -15 {
		t.Errorf("expected -15, got %d", got)
	}
	// partial days floor toward negative infinity
	if got := daysBetween(day0, day0.Add(36*time.Hour)); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := daysBetween(day0.Add(12*time.Hour), day0); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}
