package pipeline

import (
	"fmt"
	"sort"

	"community-atlas/internal/models"
)

// BuildGraph prunes flows below the minimum volume threshold and assembles
// the force-graph structure. A community's size is the sum of all surviving
// flow volume touching it, inbound and outbound both counted. Node and link
// lists are sorted so the output is identical across runs for fixed input.
func BuildGraph(flows map[string]*models.FlowStat, minThreshold int, categories *Categories) models.Graph {
	nodeSize := make(map[string]int)
	links := make([]models.GraphLink, 0, len(flows))

	for _, flow := range flows {
		if flow.TotalUsers < minThreshold {
			continue
		}

		nodeSize[flow.From] += flow.TotalUsers
		nodeSize[flow.To] += flow.TotalUsers

		links = append(links, models.GraphLink{
			Source:            flow.From,
			Target:            flow.To,
			Value:             flow.TotalUsers,
			AvgTimeGap:        flow.AvgTimeGap,
			MigrationVelocity: flow.MigrationVelocity,
		})
	}

	nodes := make([]models.GraphNode, 0, len(nodeSize))
	for community, size := range nodeSize {
		nodes = append(nodes, models.GraphNode{
			ID:       community,
			Name:     fmt.Sprintf("r/%s", community),
			Size:     size,
			Category: categories.Lookup(community),
		})
	}

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	sort.Slice(links, func(i, j int) bool {
		if links[i].Source != links[j].Source {
			return links[i].Source < links[j].Source
		}
		return links[i].Target < links[j].Target
	})

	return models.Graph{Nodes: nodes, Links: links}
}
