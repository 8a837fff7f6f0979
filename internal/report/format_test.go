package report

import (
	"testing"

	"FundLetter/internal/model"
)

func TestAgentBucket(t *testing.T) {
	tests := []struct {
		agent string
		want  string
	}{
		{"Technical Agent", "technical"},
		{"fundamentals_agent", "fundamental"},
		{"SENTIMENT", "sentiment"},
		{"Valuation Analysis Agent", "valuation"},
		{"valuation vs technical", "technical"},
		{"Warren Buffett", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := AgentBucket(tt.agent); got != tt.want {
			t.Errorf("AgentBucket(%q) = %q, want %q", tt.agent, got, tt.want)
		}
	}
}

func TestActionBadge(t *testing.T) {
	tests := []struct {
		action model.Action
		want   string
	}{
		{"buy", "bullish action-buy"},
		{" Buy ", "bullish action-buy"},
		{"sell", "bearish action-sell"},
		{"hold", "neutral action-hold"},
		{"error", "neutral action-hold"},
		{"short", "neutral action-hold"},
		{"", "neutral action-hold"},
	}
	for _, tt := range tests {
		if got := ActionBadge(tt.action).String(); got != tt.want {
			t.Errorf("ActionBadge(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestConfidenceClass(t *testing.T) {
	if got := ConfidenceClass(model.NewConfidence(0.85)); got != "confidence-high" {
		t.Errorf("expected confidence-high, got %q", got)
	}
	if got := ConfidenceClass(model.NewConfidence(0.5)); got != "" {
		t.Errorf("expected no class, got %q", got)
	}
}
