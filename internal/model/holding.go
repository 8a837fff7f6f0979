package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Action is the overall recommendation for a holding.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionHold  Action = "hold"
	ActionError Action = "error"
)

// Normalize lowercases and trims the action. Unknown values are kept.
func (a Action) Normalize() Action {
	return Action(strings.ToLower(strings.TrimSpace(string(a))))
}

// Signal is the directional call of one analysis agent.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// Normalize lowercases the signal; anything unknown becomes neutral.
func (s Signal) Normalize() Signal {
	switch v := Signal(strings.ToLower(strings.TrimSpace(string(s)))); v {
	case SignalBullish, SignalBearish:
		return v
	default:
		return SignalNeutral
	}
}

// HighConfidence is the threshold above which a confidence is highlighted.
const HighConfidence = 0.8

// Confidence is a score in [0,1] as emitted by the analysis process.
// The process sometimes emits preformatted percentage strings instead of
// numbers; those are kept as text and rendered unchanged.
type Confidence struct {
	value   float64
	numeric bool
	text    string
}

// NewConfidence returns a numeric confidence.
func NewConfidence(v float64) Confidence {
	return Confidence{value: v, numeric: true}
}

// TextConfidence returns a confidence carried as raw text.
func TextConfidence(s string) Confidence {
	return Confidence{text: s}
}

// Value returns the numeric value, if there is one.
func (c Confidence) Value() (float64, bool) {
	return c.value, c.numeric
}

// IsHigh reports whether the confidence is numeric and at least HighConfidence.
func (c Confidence) IsHigh() bool {
	return c.numeric && c.value >= HighConfidence
}

// Format renders the confidence as a percentage with the given decimal places.
// Preformatted percentages pass through; anything else renders as "N/A".
func (c Confidence) Format(places int32) string {
	if c.numeric {
		pct := decimal.NewFromFloat(c.value).Mul(decimal.NewFromInt(100)).Round(places)
		return pct.StringFixed(places) + "%"
	}
	if isPercentText(c.text) {
		return c.text
	}
	return "N/A"
}

func isPercentText(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
	return err == nil
}

// UnmarshalJSON accepts numbers, numeric strings and percentage strings.
// It never fails: an unusable value is kept as text and renders as "N/A".
func (c *Confidence) UnmarshalJSON(b []byte) error {
	*c = Confidence{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			c.text = string(b)
			return nil
		}
		s = strings.TrimSpace(s)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*c = NewConfidence(f)
			return nil
		}
		c.text = s
		return nil
	}
	if f, err := strconv.ParseFloat(string(b), 64); err == nil {
		*c = NewConfidence(f)
		return nil
	}
	c.text = string(b)
	return nil
}

// MarshalJSON writes numbers as numbers and text as strings.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if c.numeric {
		return json.Marshal(c.value)
	}
	if c.text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(c.text)
}

// Reasoning is the free-text explanation of a decision. Non-string JSON
// values are kept as compact JSON text.
type Reasoning string

// UnmarshalJSON accepts any JSON value.
func (r *Reasoning) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Reasoning(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	*r = Reasoning(buf.String())
	return nil
}

// AgentSignal is one sub-analysis call attributed to a named agent.
type AgentSignal struct {
	AgentName  string     `json:"agent_name"`
	Signal     Signal     `json:"signal"`
	Confidence Confidence `json:"confidence"`
}

// UnmarshalJSON also accepts the legacy "agent" key for the agent name.
func (s *AgentSignal) UnmarshalJSON(b []byte) error {
	var raw struct {
		AgentName  string     `json:"agent_name"`
		Agent      string     `json:"agent"`
		Signal     Signal     `json:"signal"`
		Confidence Confidence `json:"confidence"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.AgentName = raw.AgentName
	if s.AgentName == "" {
		s.AgentName = raw.Agent
	}
	s.Signal = raw.Signal
	s.Confidence = raw.Confidence
	return nil
}

// HoldingResult is the outcome of analyzing one ticker.
type HoldingResult struct {
	Action       Action        `json:"action"`
	Confidence   Confidence    `json:"confidence"`
	Reasoning    Reasoning     `json:"reasoning"`
	AgentSignals []AgentSignal `json:"agent_signals"`
}
