package pipeline

import (
	"time"

	"community-atlas/internal/models"
)

const bridgeExportLimit = 20

// AssembleExport composes the final payload. Graph and metadata are always
// present; flows, the top bridge communities and summary statistics are
// included only when metrics are requested. Summary statistics are omitted
// entirely for runs with zero migrations instead of emitting NaN values.
func AssembleExport(
	events []models.MigrationEvent,
	flows map[string]*models.FlowStat,
	graph models.Graph,
	bridges []models.BridgeScore,
	includeMetrics bool,
	now time.Time,
) models.Export {
	export := models.Export{
		Graph: graph,
		Metadata: models.Metadata{
			TotalMigrations: len(events),
			UniqueUsers:     countUniqueUsers(events),
			CommunityCount:  len(graph.Nodes),
			FlowCount:       len(graph.Links),
			GeneratedAt:     now.UTC().Format(time.RFC3339),
		},
	}

	if !includeMetrics {
		return export
	}

	export.Flows = flows

	top := bridges
	if len(top) > bridgeExportLimit {
		top = top[:bridgeExportLimit]
	}
	export.BridgeCommunities = top

	if len(events) > 0 {
		gaps := make([]int, len(events))
		for i, ev := range events {
			gaps[i] = ev.GapDays
		}
		export.SummaryStats = &models.SummaryStats{
			AvgMigrationTime:    round1(mean(gaps)),
			MedianMigrationTime: round1(median(gaps)),
			FastestMigration:    minInt(gaps),
			SlowestMigration:    maxInt(gaps),
		}
	}

	return export
}

func countUniqueUsers(events []models.MigrationEvent) int {
	users := make(map[string]struct{}, len(events))
	for _, ev := range events {
		users[ev.User] = struct{}{}
	}
	return len(users)
}
