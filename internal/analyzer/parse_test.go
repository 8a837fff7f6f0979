package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FundLetter/internal/model"
)

func TestParseFinalResult(t *testing.T) {
	out := "Analyzing AAPL...\n" +
		"==== Technical Agent ====\n" +
		"signal: bullish\n" +
		"Final Result:\n" +
		"{\n" +
		"  \"action\": \"buy\",\n" +
		"  \"confidence\": 0.9,\n" +
		"  \"reasoning\": \"Strong quarter.\",\n" +
		"  \"agent_signals\": [{\"agent_name\": \"Technical Agent\", \"signal\": \"bullish\", \"confidence\": 0.8}]\n" +
		"}\n"

	res, err := ParseFinalResult(out)
	require.NoError(t, err)
	assert.Equal(t, model.ActionBuy, res.Action)
	assert.Equal(t, "90%", res.Confidence.Format(0))
	require.Len(t, res.AgentSignals, 1)
	assert.Equal(t, model.SignalBullish, res.AgentSignals[0].Signal)
}

func TestParseFinalResult_MarkerMidLine(t *testing.T) {
	res, err := ParseFinalResult("2024-01-01 INFO Final Result:\n{\"action\": \"sell\"}")
	require.NoError(t, err)
	assert.Equal(t, model.ActionSell, res.Action)
}

func TestParseFinalResult_Failures(t *testing.T) {
	tests := []struct {
		name   string
		output string
		target error
	}{
		{"empty output", "", ErrNoMarker},
		{"no marker", "{\"action\": \"buy\"}\n", ErrNoMarker},
		{"lowercase marker", "final result:\n{\"action\": \"buy\"}", ErrNoMarker},
		{"nothing after marker", "Final Result:\n\n  \n", ErrEmptyResult},
		{"null result", "Final Result:\nnull\n", ErrBlankResult},
		{"empty object", "Final Result:\n{ }\n", ErrBlankResult},
		{"invalid json", "Final Result:\n{\"action\": ", nil},
		{"trailing noise", "Final Result:\n{\"action\": \"buy\"}\nDone.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseFinalResult(tt.output)
			assert.Nil(t, res)
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
		})
	}
}
