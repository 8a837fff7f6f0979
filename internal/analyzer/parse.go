package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"FundLetter/internal/model"
)

// ResultMarker precedes the JSON result in the analysis process output.
const ResultMarker = "Final Result:"

var (
	ErrNoMarker    = errors.New("final result marker not found")
	ErrEmptyResult = errors.New("no output after final result marker")
	ErrBlankResult = errors.New("final result is null or an empty object")
)

// ParseFinalResult extracts the JSON document printed after the first line
// containing ResultMarker. Everything after that line is part of the document.
func ParseFinalResult(output string) (*model.HoldingResult, error) {
	lines := strings.Split(output, "\n")
	start := -1
	for i, line := range lines {
		if strings.Contains(line, ResultMarker) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, ErrNoMarker
	}

	payload := strings.TrimSpace(strings.Join(lines[start:], "\n"))
	if payload == "" {
		return nil, ErrEmptyResult
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("decode final result: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrBlankResult
	}

	var res model.HoldingResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("decode final result: %w", err)
	}
	return &res, nil
}
