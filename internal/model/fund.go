package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Category groups the tickers of one sector in fund.json.
type Category struct {
	Name     string   `json:"name"`
	Holdings []string `json:"holdings"`
}

// FundConfig is the static fund definition loaded from fund.json.
type FundConfig struct {
	FundName string              `json:"fund_name"`
	Holdings map[string]Category `json:"holdings"`

	// order is the category key order of the decoded document.
	order []string
}

// UnmarshalJSON decodes the document and remembers the order of the
// categories under "holdings".
func (c *FundConfig) UnmarshalJSON(data []byte) error {
	type plain FundConfig
	var raw struct {
		plain
		Holdings json.RawMessage `json:"holdings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = FundConfig(raw.plain)
	c.Holdings = nil
	c.order = nil

	holdings := bytes.TrimSpace(raw.Holdings)
	if len(holdings) == 0 || bytes.Equal(holdings, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(holdings, &c.Holdings); err != nil {
		return err
	}
	order, err := objectKeys(holdings)
	if err != nil {
		return err
	}
	c.order = order
	return nil
}

func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// CategoryKeys returns the category keys in fund.json order. Categories the
// document did not name, as in a config built in code, follow sorted.
func (c *FundConfig) CategoryKeys() []string {
	keys := make([]string, 0, len(c.Holdings))
	seen := make(map[string]bool, len(c.Holdings))
	for _, k := range c.order {
		if _, ok := c.Holdings[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0, len(c.Holdings)-len(keys))
	for k := range c.Holdings {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Tickers returns every ticker of the fund, category by category, without duplicates.
func (c *FundConfig) Tickers() []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, key := range c.CategoryKeys() {
		for _, t := range c.Holdings[key].Holdings {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			tickers = append(tickers, t)
		}
	}
	return tickers
}

// FundState holds the latest analysis result per ticker.
// It is rewritten as a whole after each analysis run.
type FundState struct {
	Holdings  map[string]HoldingResult `json:"holdings"`
	UpdatedAt time.Time                `json:"updated_at,omitempty"`
}

// NewFundState returns a state holding the given results.
func NewFundState(results map[string]HoldingResult) *FundState {
	if results == nil {
		results = make(map[string]HoldingResult)
	}
	return &FundState{Holdings: results}
}

// RunStats summarizes one analysis run.
type RunStats struct {
	RunID      string
	Total      int
	Successful int
	Failed     int
	Recipients int
	Sent       int
	SendFailed int
	StartedAt  time.Time
	FinishedAt time.Time

	// DistributionError is set when recipients could not be loaded. The run
	// still completes.
	DistributionError string
}
