package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"community-atlas/internal/models"
)

// FlowKey is the canonical map key for one directed flow.
func FlowKey(from, to string) string {
	return fmt.Sprintf("%s->%s", from, to)
}

// AggregateFlows groups migration events by (from, to) pair and computes the
// per-flow summary statistics. The result covers every observed pair with at
// least one event; an empty event set yields an empty map.
func AggregateFlows(events []models.MigrationEvent) map[string]*models.FlowStat {
	type group struct {
		gaps     []int
		earliest time.Time
		latest   time.Time
	}

	groups := make(map[string]*group)
	order := make(map[string][2]string)

	for _, ev := range events {
		key := FlowKey(ev.FromCommunity, ev.ToCommunity)
		g, ok := groups[key]
		if !ok {
			g = &group{earliest: ev.MigrationDate, latest: ev.MigrationDate}
			groups[key] = g
			order[key] = [2]string{ev.FromCommunity, ev.ToCommunity}
		}
		g.gaps = append(g.gaps, ev.GapDays)
		if ev.MigrationDate.Before(g.earliest) {
			g.earliest = ev.MigrationDate
		}
		if ev.MigrationDate.After(g.latest) {
			g.latest = ev.MigrationDate
		}
	}

	flows := make(map[string]*models.FlowStat, len(groups))
	for key, g := range groups {
		pair := order[key]
		count := len(g.gaps)

		stat := &models.FlowStat{
			From:          pair[0],
			To:            pair[1],
			TotalUsers:    count,
			AvgTimeGap:    round1(mean(g.gaps)),
			MedianTimeGap: round1(median(g.gaps)),
			MinTimeGap:    minInt(g.gaps),
			MaxTimeGap:    maxInt(g.gaps),
		}

		// velocity: migrations per 30-day period spanned by the group,
		// or the raw count when the span collapses to zero
		spanDays := daysBetween(g.earliest, g.latest)
		if spanDays > 0 {
			stat.MigrationVelocity = round2(float64(count) / (float64(spanDays) / 30))
		} else {
			stat.MigrationVelocity = float64(count)
		}

		flows[key] = stat
	}

	return flows
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func median(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]int, len(xs))
	copy(sorted, xs)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
