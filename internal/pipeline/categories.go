package pipeline

import "strings"

// Categories resolves a community name to its category label. Matching is
// case-insensitive; unknown communities resolve to "other".
type Categories struct {
	byCommunity map[string]string
}

func NewCategories(table map[string][]string) *Categories {
	idx := make(map[string]string)
	for category, communities := range table {
		for _, name := range communities {
			idx[strings.ToLower(name)] = category
		}
	}
	return &Categories{byCommunity: idx}
}

func (c *Categories) Lookup(community string) string {
	if cat, ok := c.byCommunity[strings.ToLower(community)]; ok {
		return cat
	}
	return "other"
}

// DefaultCategoryTable is the seed community table. Deployments can replace
// it via the CATEGORIES configuration value.
func DefaultCategoryTable() map[string][]string {
	return map[string][]string{
		"fitness": {
			"fitness", "loseit", "keto", "intermittentfasting",
			"bodyweightfitness", "xxfitness", "gainit", "running",
		},
		"tech": {
			"learnprogramming", "webdev", "reactjs", "python",
			"javascript", "programming", "coding", "cscareerquestions",
		},
		"finance": {
			"personalfinance", "investing", "stocks", "cryptocurrency",
			"financialindependence", "wallstreetbets", "dividends", "options",
		},
		"gaming": {
			"gaming", "pcgaming", "ps5", "xbox", "nintendo",
			"games", "truegaming", "patientgamers",
		},
		"creative": {
			"art", "design", "photography", "music",
			"writing", "learnart", "musicproduction", "digitalart",
		},
	}
}
