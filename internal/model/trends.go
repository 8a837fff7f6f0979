package model

// TrendsSummary is the narrative section of the newsletter.
type TrendsSummary struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}
