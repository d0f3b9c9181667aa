package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"community-atlas/internal/models"
)

// Collector CSV layout: user, community, post_count, first_seen, last_seen.
// One row per user x community. Timestamps are RFC 3339 or plain dates.
var expectedHeader = []string{"user", "community", "post_count", "first_seen", "last_seen"}

// ParseStats counts what happened to the rows of one file. Malformed rows
// are skipped and counted, never fatal.
type ParseStats struct {
	Rows    int
	Loaded  int
	Skipped int
}

// ReadIntervals parses collector output. Community names are lower-cased
// here — case normalization happens once at ingestion, nowhere downstream.
func ReadIntervals(r io.Reader) ([]models.ActivityInterval, ParseStats, error) {
	var stats ParseStats

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, stats, err
	}

	var intervals []models.ActivityInterval
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Rows++
			stats.Skipped++
			continue
		}
		stats.Rows++

		iv, ok := parseRecord(record)
		if !ok {
			stats.Skipped++
			continue
		}
		intervals = append(intervals, iv)
		stats.Loaded++
	}

	return intervals, stats, nil
}

// ReadIntervalsFile parses a collector CSV from disk.
func ReadIntervalsFile(path string) ([]models.ActivityInterval, ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ParseStats{}, err
	}
	defer f.Close()
	return ReadIntervals(f)
}

func checkHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("expected %d columns, got %d", len(expectedHeader), len(header))
	}
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(col)) != expectedHeader[i] {
			return fmt.Errorf("unexpected column %d: %q (want %q)", i, col, expectedHeader[i])
		}
	}
	return nil
}

func parseRecord(record []string) (models.ActivityInterval, bool) {
	if len(record) != len(expectedHeader) {
		return models.ActivityInterval{}, false
	}

	user := strings.TrimSpace(record[0])
	community := strings.ToLower(strings.TrimSpace(record[1]))
	if user == "" || community == "" {
		return models.ActivityInterval{}, false
	}

	postCount, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil || postCount < 0 {
		return models.ActivityInterval{}, false
	}

	firstSeen, err := parseTimestamp(record[3])
	if err != nil {
		return models.ActivityInterval{}, false
	}
	lastSeen, err := parseTimestamp(record[4])
	if err != nil {
		return models.ActivityInterval{}, false
	}
	if lastSeen.Before(firstSeen) {
		return models.ActivityInterval{}, false
	}

	return models.ActivityInterval{
		User:      user,
		Community: community,
		PostCount: postCount,
		FirstSeen: firstSeen,
		LastSeen:  lastSeen,
	}, true
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// GroupByUser buckets intervals per user and drops users active in fewer
// than two distinct communities — they cannot migrate and the detector
// should never see them.
func GroupByUser(intervals []models.ActivityInterval) map[string][]models.ActivityInterval {
	byUser := make(map[string][]models.ActivityInterval)
	for _, iv := range intervals {
		byUser[iv.User] = append(byUser[iv.User], iv)
	}

	for user, ivs := range byUser {
		communities := make(map[string]struct{}, len(ivs))
		for _, iv := range ivs {
			communities[iv.Community] = struct{}{}
		}
		if len(communities) < 2 {
			delete(byUser, user)
		}
	}
	return byUser
}
