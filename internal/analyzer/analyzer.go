package analyzer

import (
	"context"

	"FundLetter/internal/model"
)

// Analyzer produces the analysis result for a single ticker.
// A false return means the analysis failed; the failure has already been logged.
type Analyzer interface {
	Analyze(ctx context.Context, ticker string) (*model.HoldingResult, bool)
}

// MockAnalyzer returns fixed results for development and testing.
// Tickers without an entry fail.
type MockAnalyzer struct {
	Results map[string]model.HoldingResult
	Calls   []string
}

func (m *MockAnalyzer) Analyze(_ context.Context, ticker string) (*model.HoldingResult, bool) {
	m.Calls = append(m.Calls, ticker)
	r, ok := m.Results[ticker]
	if !ok {
		return nil, false
	}
	return &r, true
}
