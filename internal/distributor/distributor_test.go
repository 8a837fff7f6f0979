package distributor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FundLetter/internal/logging"
	"FundLetter/internal/model"
	"FundLetter/internal/recorder"
	"FundLetter/internal/report"
)

type docs struct {
	cfg      *model.FundConfig
	state    *model.FundState
	stateErr error
}

func (d docs) Config() (*model.FundConfig, error) { return d.cfg, nil }
func (d docs) State() (*model.FundState, error)   { return d.state, d.stateErr }

type sent struct {
	to, subject, html string
}

type fakeSender struct {
	fail map[string]bool
	sent []sent
}

func (f *fakeSender) Send(_ context.Context, to, subject, html string) error {
	if f.fail[to] {
		return errors.New("550 mailbox unavailable")
	}
	f.sent = append(f.sent, sent{to, subject, html})
	return nil
}

type memRecorder struct {
	recorder.NoopRecorder
	deliveries []recorder.DeliveryEvent
}

func (m *memRecorder) RecordDelivery(evt *recorder.DeliveryEvent) error {
	m.deliveries = append(m.deliveries, *evt)
	return nil
}

func newDistributor(t *testing.T, buf *bytes.Buffer, d docs, s *fakeSender, rec recorder.Recorder) (*Distributor, *[]time.Duration) {
	t.Helper()
	r, err := report.NewRenderer(report.Options{})
	require.NoError(t, err)
	var sleeps []time.Duration
	return &Distributor{
		Docs:     d,
		Renderer: r,
		Sender:   s,
		Recorder: rec,
		Logger:   logging.NewWriter(buf),
		Interval: time.Second,
		Now:      func() time.Time { return time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC) },
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	}, &sleeps
}

func fundDocs() docs {
	return docs{
		cfg: &model.FundConfig{FundName: "Reindustrialization Fund", Holdings: map[string]model.Category{
			"tech": {Name: "Technology", Holdings: []string{"AAPL"}},
		}},
		state: model.NewFundState(map[string]model.HoldingResult{"AAPL": {Action: model.ActionBuy}}),
	}
}

func TestDistribute_ContinuesPastFailures(t *testing.T) {
	var buf bytes.Buffer
	s := &fakeSender{fail: map[string]bool{"b@example.com": true}}
	rec := &memRecorder{}
	d, sleeps := newDistributor(t, &buf, fundDocs(), s, rec)

	ctx := recorder.WithRunID(context.Background(), "run-7")
	sum, err := d.Distribute(ctx, []string{"a@example.com", "b@example.com", "c@example.com"}, model.TrendsSummary{Summary: "S"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Recipients: 3, Sent: 2, Failed: 1}, sum)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, `"message":"report sent"`))
	assert.Equal(t, 1, strings.Count(out, `"message":"failed to send report"`))
	assert.Contains(t, out, `"position":"1/3"`)
	assert.Contains(t, out, `"position":"3/3"`)

	require.Len(t, s.sent, 2)
	assert.Equal(t, "Reindustrialization Fund Holdings Analysis - 2026-10-12", s.sent[0].subject)
	assert.Equal(t, s.sent[0].html, s.sent[1].html, "report is rendered once and reused")
	assert.Contains(t, s.sent[0].html, `id="holding-AAPL"`)

	// only the first success paces the batch; the failure and the last send do not
	assert.Equal(t, []time.Duration{time.Second}, *sleeps)

	require.Len(t, rec.deliveries, 3)
	assert.True(t, rec.deliveries[0].Success)
	assert.False(t, rec.deliveries[1].Success)
	assert.Equal(t, "550 mailbox unavailable", rec.deliveries[1].Error)
	assert.Equal(t, 3, rec.deliveries[2].Position)
	assert.Equal(t, "run-7", rec.deliveries[2].RunID)
}

func TestDistribute_RenderFailureSendsNothing(t *testing.T) {
	var buf bytes.Buffer
	dd := fundDocs()
	dd.stateErr = errors.New("read state: permission denied")
	s := &fakeSender{}
	d, _ := newDistributor(t, &buf, dd, s, recorder.NewNoopRecorder())

	_, err := d.Distribute(context.Background(), []string{"a@example.com"}, model.TrendsSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Empty(t, s.sent)
}

func TestDistribute_NoRecipients(t *testing.T) {
	var buf bytes.Buffer
	s := &fakeSender{}
	d, _ := newDistributor(t, &buf, fundDocs(), s, recorder.NewNoopRecorder())

	sum, err := d.Distribute(context.Background(), nil, model.TrendsSummary{})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, s.sent)
}

func TestDistribute_StopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	s := &fakeSender{}
	d, _ := newDistributor(t, &buf, fundDocs(), s, recorder.NewNoopRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	d.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	sum, err := d.Distribute(ctx, []string{"a@example.com", "b@example.com", "c@example.com"}, model.TrendsSummary{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Len(t, s.sent, 1)
	assert.Contains(t, buf.String(), "distribution cancelled")
}

func TestSubject(t *testing.T) {
	day := time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "Fund Holdings Analysis - 2026-01-05", Subject("Fund", day))
}
