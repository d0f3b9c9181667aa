package pipeline

import (
	"container/heap"
	"sort"

	"community-atlas/internal/models"
)

// BetweennessCentrality computes Brandes betweenness centrality over the
// weighted directed graph. Link value is treated as connection strength, so
// the shortest-path distance of a link is 1/value: heavier migration flows
// make shorter paths and pull bridge detection toward high-volume routes.
// Scores are normalized by 1/((N-1)(N-2)); graphs with fewer than three
// nodes score 0 everywhere, and isolated nodes always score 0.
func BetweennessCentrality(g models.Graph) map[string]float64 {
	n := len(g.Nodes)
	scores := make(map[string]float64, n)
	index := make(map[string]int, n)
	for i, node := range g.Nodes {
		scores[node.ID] = 0
		index[node.ID] = i
	}
	if n < 3 {
		return scores
	}

	type arc struct {
		to   int
		dist float64
	}
	adj := make([][]arc, n)
	for _, link := range g.Links {
		src, okS := index[link.Source]
		dst, okT := index[link.Target]
		if !okS || !okT || link.Value <= 0 {
			continue
		}
		adj[src] = append(adj[src], arc{to: dst, dist: 1 / float64(link.Value)})
	}

	betweenness := make([]float64, n)

	dist := make([]float64, n)
	seen := make([]float64, n)
	settled := make([]bool, n)
	sigma := make([]float64, n)
	delta := make([]float64, n)
	preds := make([][]int, n)
	stack := make([]int, 0, n)

	for s := 0; s < n; s++ {
		for i := 0; i < n; i++ {
			settled[i] = false
			sigma[i] = 0
			delta[i] = 0
			seen[i] = -1
			preds[i] = preds[i][:0]
		}
		stack = stack[:0]

		// Dijkstra with path counting
		sigma[s] = 1
		seen[s] = 0
		pq := &distQueue{}
		heap.Push(pq, distItem{dist: 0, node: s})

		for pq.Len() > 0 {
			item := heap.Pop(pq).(distItem)
			v := item.node
			if settled[v] {
				continue
			}
			settled[v] = true
			dist[v] = item.dist
			stack = append(stack, v)

			for _, a := range adj[v] {
				w := a.to
				if settled[w] {
					continue
				}
				d := dist[v] + a.dist
				if seen[w] < 0 || d < seen[w] {
					seen[w] = d
					sigma[w] = sigma[v]
					preds[w] = append(preds[w][:0], v)
					heap.Push(pq, distItem{dist: d, node: w})
				} else if d == seen[w] {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		// dependency accumulation in reverse settle order
		for i := len(stack) - 1; i > 0; i-- {
			w := stack[i]
			coeff := (1 + delta[w]) / sigma[w]
			for _, v := range preds[w] {
				delta[v] += sigma[v] * coeff
			}
			betweenness[w] += delta[w]
		}
	}

	scale := 1 / (float64(n-1) * float64(n-2))
	for id, i := range index {
		scores[id] = betweenness[i] * scale
	}
	return scores
}

// RankBridges orders graph nodes by descending betweenness centrality. Ties
// keep node-list order, so rankings are stable for identical inputs.
func RankBridges(g models.Graph) []models.BridgeScore {
	centrality := BetweennessCentrality(g)

	bridges := make([]models.BridgeScore, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		bridges = append(bridges, models.BridgeScore{
			Community:  node.ID,
			Centrality: centrality[node.ID],
			Category:   node.Category,
		})
	}

	sort.SliceStable(bridges, func(i, j int) bool {
		return bridges[i].Centrality > bridges[j].Centrality
	})
	return bridges
}

type distItem struct {
	dist float64
	node int
}

type distQueue []distItem

func (q distQueue) Len() int            { return len(q) }
func (q distQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q distQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x interface{}) { *q = append(*q, x.(distItem)) }
func (q *distQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
