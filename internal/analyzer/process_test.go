package analyzer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FundLetter/internal/logging"
	"FundLetter/internal/model"
)

func shAnalyzer(script string, buf *bytes.Buffer) *ProcessAnalyzer {
	return NewProcessAnalyzer([]string{"sh", "-c", script, "analyzer"}, "", logging.NewWriter(buf))
}

func TestProcessAnalyzer_Args(t *testing.T) {
	p := NewProcessAnalyzer([]string{"poetry", "run", "python", "src/main.py", "--ticker", "{ticker}", "--show-reasoning"}, "", logging.Discard())
	assert.Equal(t, []string{"poetry", "run", "python", "src/main.py", "--ticker", "MSFT", "--show-reasoning"}, p.Args("MSFT"))

	p = NewProcessAnalyzer([]string{"./analyze"}, "", logging.Discard())
	assert.Equal(t, []string{"./analyze", "MSFT"}, p.Args("MSFT"))
}

func TestProcessAnalyzer_Success(t *testing.T) {
	var buf bytes.Buffer
	p := shAnalyzer(`echo "running $1"; echo "Final Result:"; echo '{"action": "hold", "confidence": 0.55, "reasoning": "'"$1"' is flat."}'`, &buf)

	res, ok := p.Analyze(context.Background(), "CAT")
	require.True(t, ok, buf.String())
	assert.Equal(t, model.ActionHold, res.Action)
	assert.Equal(t, model.Reasoning("CAT is flat."), res.Reasoning)
}

func TestProcessAnalyzer_NonZeroExitLogsStderr(t *testing.T) {
	var buf bytes.Buffer
	p := shAnalyzer(`echo "Final Result:"; echo '{"action": "buy"}'; echo "rate limited by data vendor" >&2; exit 3`, &buf)

	res, ok := p.Analyze(context.Background(), "AAPL")
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Contains(t, buf.String(), "rate limited by data vendor")
	assert.Contains(t, buf.String(), `"exit_code":3`)
	assert.Contains(t, buf.String(), `"ticker":"AAPL"`)
}

func TestProcessAnalyzer_MissingMarker(t *testing.T) {
	var buf bytes.Buffer
	p := shAnalyzer(`echo '{"action": "buy"}'`, &buf)

	res, ok := p.Analyze(context.Background(), "AAPL")
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Contains(t, buf.String(), "error parsing analysis result")
}

func TestProcessAnalyzer_BlankResult(t *testing.T) {
	for _, payload := range []string{"null", "{}"} {
		t.Run(payload, func(t *testing.T) {
			var buf bytes.Buffer
			p := shAnalyzer(`echo "Final Result:"; echo '`+payload+`'`, &buf)

			res, ok := p.Analyze(context.Background(), "AAPL")
			assert.False(t, ok)
			assert.Nil(t, res)
			assert.Contains(t, buf.String(), "error parsing analysis result")
		})
	}
}

func TestProcessAnalyzer_MissingBinary(t *testing.T) {
	var buf bytes.Buffer
	p := NewProcessAnalyzer([]string{"/nonexistent/analyzer-binary"}, "", logging.NewWriter(&buf))

	res, ok := p.Analyze(context.Background(), "AAPL")
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Contains(t, buf.String(), "error analyzing ticker")
}

func TestMockAnalyzer(t *testing.T) {
	m := &MockAnalyzer{Results: map[string]model.HoldingResult{"AAPL": {Action: model.ActionBuy}}}
	res, ok := m.Analyze(context.Background(), "AAPL")
	require.True(t, ok)
	assert.Equal(t, model.ActionBuy, res.Action)

	_, ok = m.Analyze(context.Background(), "MSFT")
	assert.False(t, ok)
	assert.Equal(t, []string{"AAPL", "MSFT"}, m.Calls)
}
