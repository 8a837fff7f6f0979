package report

import (
	"strings"

	"FundLetter/internal/model"
)

// Buckets are the agent categories, matched in this order.
var Buckets = []string{"technical", "fundamental", "sentiment", "valuation"}

// AgentBucket returns the first bucket contained in the agent name,
// case-insensitively, or "" when none matches.
func AgentBucket(agentName string) string {
	name := strings.ToLower(agentName)
	for _, b := range Buckets {
		if strings.Contains(name, b) {
			return b
		}
	}
	return ""
}

// Badge holds the CSS classes of an action badge.
type Badge struct {
	Signal string
	Action string
}

// String returns both classes, space separated.
func (b Badge) String() string {
	return b.Signal + " " + b.Action
}

// ActionBadge maps an action to its badge classes. Everything other than
// buy and sell, including a missing action, is neutral.
func ActionBadge(a model.Action) Badge {
	switch a.Normalize() {
	case model.ActionBuy:
		return Badge{Signal: "bullish", Action: "action-buy"}
	case model.ActionSell:
		return Badge{Signal: "bearish", Action: "action-sell"}
	default:
		return Badge{Signal: "neutral", Action: "action-hold"}
	}
}

// ActionLabel is the badge text.
func ActionLabel(a model.Action) string {
	if v := a.Normalize(); v != "" {
		return strings.ToUpper(string(v))
	}
	return "N/A"
}

// SignalClass returns the dot class for an agent signal.
func SignalClass(s model.Signal) string {
	return string(s.Normalize())
}

// ConfidenceClass highlights high-confidence calls.
func ConfidenceClass(c model.Confidence) string {
	if c.IsHigh() {
		return "confidence-high"
	}
	return ""
}
