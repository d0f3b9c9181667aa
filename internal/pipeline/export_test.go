package pipeline

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"community-atlas/internal/models"
)

func TestAssembleExport_WithMetrics(t *testing.T) {
	events := []models.MigrationEvent{
		event("a", "keto", "fitness", 10, 0),
		event("b", "keto", "fitness", 20, 30),
		event("a", "fitness", "running", 30, 60),
	}
	flows := AggregateFlows(events)
	graph := BuildGraph(flows, 0, defaultCategories())
	bridges := RankBridges(graph)

	export := AssembleExport(events, flows, graph, bridges, true, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	if export.Metadata.TotalMigrations != 3 {
		t.Errorf("expected 3 migrations, got %d", export.Metadata.TotalMigrations)
	}
	if export.Metadata.UniqueUsers != 2 {
		t.Errorf("expected 2 unique users, got %d", export.Metadata.UniqueUsers)
	}
	if export.Metadata.CommunityCount != len(graph.Nodes) || export.Metadata.FlowCount != len(graph.Links) {
		t.Error("metadata counts must match the graph")
	}
	if export.Metadata.GeneratedAt != "2024-06-01T12:00:00Z" {
		t.Errorf("unexpected generated_at: %s", export.Metadata.GeneratedAt)
	}

	if export.Flows == nil || export.BridgeCommunities == nil {
		t.Fatal("metrics sections missing")
	}
	if export.SummaryStats == nil {
		t.Fatal("summary stats missing")
	}
	if export.SummaryStats.AvgMigrationTime != 20.0 {
		t.Errorf("expected avg 20.0, got %v", export.SummaryStats.AvgMigrationTime)
	}
	if export.SummaryStats.FastestMigration != 10 || export.SummaryStats.SlowestMigration != 30 {
		t.Errorf("unexpected fastest/slowest: %d/%d", export.SummaryStats.FastestMigration, export.SummaryStats.SlowestMigration)
	}
}

func TestAssembleExport_WithoutMetrics(t *testing.T) {
	events := []models.MigrationEvent{event("a", "keto", "fitness", 10, 0)}
	flows := AggregateFlows(events)
	graph := BuildGraph(flows, 0, defaultCategories())

	export := AssembleExport(events, flows, graph, RankBridges(graph), false, time.Now())

	if export.Flows != nil || export.BridgeCommunities != nil || export.SummaryStats != nil {
		t.Error("optional sections must be nil when metrics are excluded")
	}
}

func TestAssembleExport_BridgeTruncation(t *testing.T) {
	bridges := make([]models.BridgeScore, 30)
	for i := range bridges {
		bridges[i] = models.BridgeScore{Community: "c", Centrality: float64(30 - i)}
	}

	export := AssembleExport(nil, nil, models.Graph{}, bridges, true, time.Now())

	if len(export.BridgeCommunities) != 20 {
		t.Errorf("expected top 20 bridges, got %d", len(export.BridgeCommunities))
	}
	if export.BridgeCommunities[0].Centrality != 30 {
		t.Error("truncation must keep the highest-ranked entries")
	}
}

func TestAssembleExport_EmptyRunOmitsSummaryStats(t *testing.T) {
	export := AssembleExport(nil, map[string]*models.FlowStat{}, models.Graph{}, nil, true, time.Now())

	if export.SummaryStats != nil {
		t.Error("summary stats must be omitted for zero migrations")
	}

	payload, err := json.Marshal(export)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(payload), "summary_stats") {
		t.Error("summary_stats key must not appear in the payload")
	}
	if strings.Contains(string(payload), "NaN") {
		t.Error("payload must never contain NaN")
	}
}
