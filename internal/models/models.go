package models

import "time"

// ActivityInterval is one user's aggregated activity window in one community,
// as produced by the collector. Community names are lower-cased at ingestion.
type ActivityInterval struct {
	User      string    `json:"user"`
	Community string    `json:"community"`
	PostCount int       `json:"post_count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// MigrationEvent is one detected move of a user between two communities.
type MigrationEvent struct {
	User          string    `json:"user"`
	FromCommunity string    `json:"from_community"`
	ToCommunity   string    `json:"to_community"`
	GapDays       int       `json:"gap_days"`
	MigrationDate time.Time `json:"migration_date"`
	FromActivity  int       `json:"from_activity"`
	ToActivity    int       `json:"to_activity"`
}

// FlowStat aggregates all migration events sharing one (from, to) pair.
type FlowStat struct {
	From              string  `json:"from"`
	To                string  `json:"to"`
	TotalUsers        int     `json:"total_users"`
	AvgTimeGap        float64 `json:"avg_time_gap"`
	MedianTimeGap     float64 `json:"median_time_gap"`
	MinTimeGap        int     `json:"min_time_gap"`
	MaxTimeGap        int     `json:"max_time_gap"`
	MigrationVelocity float64 `json:"migration_velocity"`
}

type GraphNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Category string `json:"category"`
}

type GraphLink struct {
	Source            string  `json:"source"`
	Target            string  `json:"target"`
	Value             int     `json:"value"`
	AvgTimeGap        float64 `json:"avg_time_gap"`
	MigrationVelocity float64 `json:"migration_velocity"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

type BridgeScore struct {
	Community  string  `json:"community"`
	Centrality float64 `json:"centrality"`
	Category   string  `json:"category"`
}

type Metadata struct {
	TotalMigrations int    `json:"total_migrations"`
	UniqueUsers     int    `json:"unique_users"`
	CommunityCount  int    `json:"community_count"`
	FlowCount       int    `json:"flow_count"`
	GeneratedAt     string `json:"generated_at"`
}

type SummaryStats struct {
	AvgMigrationTime    float64 `json:"avg_migration_time"`
	MedianMigrationTime float64 `json:"median_migration_time"`
	FastestMigration    int     `json:"fastest_migration"`
	SlowestMigration    int     `json:"slowest_migration"`
}

// Export is the complete frontend payload. Optional sections are nil when
// metrics are excluded or when the run produced no migrations.
type Export struct {
	Graph             Graph                `json:"graph"`
	Metadata          Metadata             `json:"metadata"`
	Flows             map[string]*FlowStat `json:"flows,omitempty"`
	BridgeCommunities []BridgeScore        `json:"bridge_communities,omitempty"`
	SummaryStats      *SummaryStats        `json:"summary_stats,omitempty"`
}

// AnalysisRun records one completed pipeline run.
type AnalysisRun struct {
	ID              int64     `json:"id"`
	TotalMigrations int       `json:"total_migrations"`
	UniqueUsers     int       `json:"unique_users"`
	CommunityCount  int       `json:"community_count"`
	FlowCount       int       `json:"flow_count"`
	SkippedPairs    int       `json:"skipped_pairs"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}
