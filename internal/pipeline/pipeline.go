package pipeline

import (
	"log/slog"
	"sort"
	"time"

	"community-atlas/internal/models"
)

// Result is the full output of one pipeline run.
type Result struct {
	Events  []models.MigrationEvent
	Flows   map[string]*models.FlowStat
	Graph   models.Graph
	Bridges []models.BridgeScore
	Export  models.Export
	Skips   SkipStats
}

// Runner executes the analysis pipeline: detect migrations, aggregate flows,
// build the pruned graph, rank bridge communities and assemble the export.
// A Runner is stateless across runs; each Run uses fresh accumulators, so
// concurrent runs on separate Runner values never share state.
type Runner struct {
	cfg        Config
	detector   *Detector
	categories *Categories
	logger     *slog.Logger
}

func NewRunner(cfg Config, categories *Categories, logger *slog.Logger) (*Runner, error) {
	detector, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = NewCategories(DefaultCategoryTable())
	}
	return &Runner{
		cfg:        cfg,
		detector:   detector,
		categories: categories,
		logger:     logger,
	}, nil
}

// Run processes one batch of interval sets keyed by user. Empty input
// produces a complete empty export rather than an error. Users are visited
// in sorted order so event ordering, and therefore the export, is
// deterministic for identical input.
func (r *Runner) Run(intervalsByUser map[string][]models.ActivityInterval, includeMetrics bool) Result {
	started := time.Now()

	users := make([]string, 0, len(intervalsByUser))
	for user := range intervalsByUser {
		users = append(users, user)
	}
	sort.Strings(users)

	var events []models.MigrationEvent
	var skips SkipStats
	for _, user := range users {
		userEvents, userSkips := r.detector.DetectUser(intervalsByUser[user])
		events = append(events, userEvents...)
		skips.Add(userSkips)
	}
	r.logger.Info("migrations_detected",
		"events", len(events),
		"users", len(users),
		"skipped_missing_timestamp", skips.MissingTimestamp,
		"skipped_ordering", skips.OrderingViolated,
		"skipped_gap_out_of_range", skips.GapOutOfRange,
	)

	flows := AggregateFlows(events)
	r.logger.Info("flows_aggregated", "flows", len(flows))

	graph := BuildGraph(flows, r.cfg.MinFlowThreshold, r.categories)
	r.logger.Info("graph_built", "nodes", len(graph.Nodes), "links", len(graph.Links))

	bridges := RankBridges(graph)
	r.logger.Info("bridges_ranked", "communities", len(bridges))

	export := AssembleExport(events, flows, graph, bridges, includeMetrics, time.Now())
	r.logger.Info("export_assembled",
		"total_migrations", export.Metadata.TotalMigrations,
		"unique_users", export.Metadata.UniqueUsers,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	return Result{
		Events:  events,
		Flows:   flows,
		Graph:   graph,
		Bridges: bridges,
		Export:  export,
		Skips:   skips,
	}
}
