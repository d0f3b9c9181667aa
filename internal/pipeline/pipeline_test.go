package pipeline

import (
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"community-atlas/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(Config{MinGapDays: 7, MaxGapDays: 180, MinFlowThreshold: 0}, nil, testLogger())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestNewRunner_RejectsInvalidConfig(t *testing.T) {
	_, err := NewRunner(Config{MinGapDays: 30, MaxGapDays: 7}, nil, testLogger())
	if err == nil {
		t.Fatal("expected error for inverted gap window")
	}
}

func TestRun_EmptyInput(t *testing.T) {
	r := newTestRunner(t)

	result := r.Run(map[string][]models.ActivityInterval{}, true)

	if result.Export.Metadata.TotalMigrations != 0 {
		t.Errorf("expected 0 migrations, got %d", result.Export.Metadata.TotalMigrations)
	}
	if result.Export.SummaryStats != nil {
		t.Error("summary stats must be omitted for an empty run")
	}

	payload, err := json.Marshal(result.Export)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(payload)
	if !strings.Contains(s, `"nodes":[]`) || !strings.Contains(s, `"links":[]`) {
		t.Errorf("empty run must serialize empty node/link arrays: %s", s)
	}
	if strings.Contains(s, "summary_stats") {
		t.Error("summary_stats must not appear for an empty run")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	r := newTestRunner(t)

	intervals := map[string][]models.ActivityInterval{
		"alice": {
			interval("alice", "keto", 4, 0, 5),
			interval("alice", "fitness", 6, 20, 40),
		},
		"bob": {
			interval("bob", "keto", 3, 0, 10),
			interval("bob", "fitness", 8, 25, 50),
		},
	}

	result := r.Run(intervals, true)

	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.Events))
	}
	flow, ok := result.Flows["keto->fitness"]
	if !ok || flow.TotalUsers != 2 {
		t.Fatalf("expected keto->fitness flow with 2 users, got %+v", flow)
	}
	if len(result.Graph.Nodes) != 2 || len(result.Graph.Links) != 1 {
		t.Errorf("unexpected graph: %d nodes, %d links", len(result.Graph.Nodes), len(result.Graph.Links))
	}
	if len(result.Bridges) != 2 {
		t.Errorf("expected 2 bridge entries, got %d", len(result.Bridges))
	}
	if result.Export.Metadata.UniqueUsers != 2 {
		t.Errorf("expected 2 unique users, got %d", result.Export.Metadata.UniqueUsers)
	}
}

func TestRun_Deterministic(t *testing.T) {
	r := newTestRunner(t)

	intervals := map[string][]models.ActivityInterval{
		"alice": {
			interval("alice", "keto", 4, 0, 5),
			interval("alice", "fitness", 6, 20, 40),
			interval("alice", "running", 2, 60, 90),
		},
		"bob": {
			interval("bob", "webdev", 9, 0, 15),
			interval("bob", "python", 5, 30, 45),
		},
		"carol": {
			interval("carol", "keto", 2, 5, 8),
			interval("carol", "fitness", 4, 30, 35),
		},
	}

	first := r.Run(intervals, true)
	second := r.Run(intervals, true)

	if !reflect.DeepEqual(first.Graph, second.Graph) {
		t.Error("graph must be identical across runs")
	}
	if !reflect.DeepEqual(first.Bridges, second.Bridges) {
		t.Error("bridge ranking must be identical across runs")
	}
	if !reflect.DeepEqual(first.Flows, second.Flows) {
		t.Error("flows must be identical across runs")
	}
}

func TestRun_SkipCountersSurface(t *testing.T) {
	r := newTestRunner(t)

	broken := interval("alice", "keto", 4, 0, 5)
	broken.LastSeen = time.Time{}

	result := r.Run(map[string][]models.ActivityInterval{
		"alice": {broken, interval("alice", "fitness", 6, 20, 40)},
	}, false)

	if len(result.Events) != 0 {
		t.Errorf("expected no events, got %d", len(result.Events))
	}
	if result.Skips.Total() == 0 {
		t.Error("skipped pairs must be counted")
	}
}
