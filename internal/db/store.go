package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"community-atlas/internal/models"
)

var intervalColumns = []string{"user_name", "community", "post_count", "first_seen", "last_seen"}

// ReplaceIntervals swaps the interval table contents for a fresh collector
// batch. The delete and bulk load run in one transaction so readers never
// observe a half-loaded dataset.
func (d *DB) ReplaceIntervals(ctx context.Context, intervals []models.ActivityInterval) (int, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE activity_intervals`); err != nil {
		return 0, fmt.Errorf("truncate intervals: %w", err)
	}

	rows := make([][]interface{}, 0, len(intervals))
	for _, iv := range intervals {
		rows = append(rows, []interface{}{iv.User, iv.Community, iv.PostCount, iv.FirstSeen, iv.LastSeen})
	}

	copied, err := tx.CopyFrom(ctx, []string{"activity_intervals"}, intervalColumns, &batchSource{rows: rows})
	if err != nil {
		return 0, fmt.Errorf("copy intervals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(copied), nil
}

// AppendIntervals bulk loads intervals without clearing existing rows.
func (d *DB) AppendIntervals(ctx context.Context, loader *BatchLoader, intervals []models.ActivityInterval) error {
	rows := make([][]interface{}, 0, len(intervals))
	for _, iv := range intervals {
		rows = append(rows, []interface{}{iv.User, iv.Community, iv.PostCount, iv.FirstSeen, iv.LastSeen})
	}
	return loader.Load(ctx, "activity_intervals", intervalColumns, rows)
}

// LoadIntervalsByUser returns interval sets keyed by user, restricted to
// users active in at least two communities — single-community users cannot
// produce migrations and are filtered before detection.
func (d *DB) LoadIntervalsByUser(ctx context.Context) (map[string][]models.ActivityInterval, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT user_name, community, post_count, first_seen, last_seen
		 FROM activity_intervals
		 WHERE user_name IN (
			SELECT user_name FROM activity_intervals
			GROUP BY user_name
			HAVING COUNT(DISTINCT community) >= 2
		 )
		 ORDER BY user_name, first_seen`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byUser := make(map[string][]models.ActivityInterval)
	for rows.Next() {
		var iv models.ActivityInterval
		if err := rows.Scan(&iv.User, &iv.Community, &iv.PostCount, &iv.FirstSeen, &iv.LastSeen); err != nil {
			return nil, err
		}
		byUser[iv.User] = append(byUser[iv.User], iv)
	}
	return byUser, rows.Err()
}

// SaveRun persists one completed analysis: run metadata with the full export
// payload, plus per-flow and per-bridge rows for querying history. Everything
// is written in one transaction; a failed run leaves no partial rows.
func (d *DB) SaveRun(ctx context.Context, run models.AnalysisRun, export models.Export, flows map[string]*models.FlowStat, bridges []models.BridgeScore) (int64, error) {
	payload, err := json.Marshal(export)
	if err != nil {
		return 0, fmt.Errorf("marshal export: %w", err)
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var runID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO analysis_runs (total_migrations, unique_users, community_count, flow_count, skipped_pairs, export, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		run.TotalMigrations, run.UniqueUsers, run.CommunityCount, run.FlowCount,
		run.SkippedPairs, payload, run.StartedAt, run.FinishedAt,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	keys := make([]string, 0, len(flows))
	for key := range flows {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		flow := flows[key]
		_, err = tx.Exec(ctx,
			`INSERT INTO migration_flows (run_id, from_community, to_community, total_users, avg_time_gap, median_time_gap, min_time_gap, max_time_gap, migration_velocity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			runID, flow.From, flow.To, flow.TotalUsers, flow.AvgTimeGap,
			flow.MedianTimeGap, flow.MinTimeGap, flow.MaxTimeGap, flow.MigrationVelocity,
		)
		if err != nil {
			return 0, fmt.Errorf("insert flow %s: %w", key, err)
		}
	}

	for i, bridge := range bridges {
		_, err = tx.Exec(ctx,
			`INSERT INTO bridge_scores (run_id, community, centrality, category, rank)
			 VALUES ($1, $2, $3, $4, $5)`,
			runID, bridge.Community, bridge.Centrality, bridge.Category, i+1,
		)
		if err != nil {
			return 0, fmt.Errorf("insert bridge %s: %w", bridge.Community, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return runID, nil
}

// LatestExport returns the export payload of the most recent analysis run.
// Returns pgx.ErrNoRows wrapped when no run has completed yet.
func (d *DB) LatestExport(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := d.Pool.QueryRow(ctx,
		`SELECT export FROM analysis_runs ORDER BY id DESC LIMIT 1`,
	).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("load latest export: %w", err)
	}
	return payload, nil
}

// LatestRun returns metadata of the most recent analysis run.
func (d *DB) LatestRun(ctx context.Context) (models.AnalysisRun, error) {
	var run models.AnalysisRun
	err := d.Pool.QueryRow(ctx,
		`SELECT id, total_migrations, unique_users, community_count, flow_count, skipped_pairs, started_at, finished_at
		 FROM analysis_runs ORDER BY id DESC LIMIT 1`,
	).Scan(&run.ID, &run.TotalMigrations, &run.UniqueUsers, &run.CommunityCount,
		&run.FlowCount, &run.SkippedPairs, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return models.AnalysisRun{}, err
	}
	return run, nil
}
