package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"FundLetter/internal/analyzer"
	"FundLetter/internal/distributor"
	"FundLetter/internal/model"
	"FundLetter/internal/notifier"
	"FundLetter/internal/recorder"
	"FundLetter/internal/subscriber"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerTest     Trigger = "test"
	TriggerManual   Trigger = "manual"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("analysis run already in progress")

// FundStore is the fund document access the pipeline needs.
type FundStore interface {
	Config() (*model.FundConfig, error)
	Replace(results map[string]model.HoldingResult) (*model.FundState, error)
}

// TrendSource produces the trends section. It never fails.
type TrendSource interface {
	Fetch(ctx context.Context) model.TrendsSummary
}

// Mailer sends the report to a batch of recipients.
type Mailer interface {
	Distribute(ctx context.Context, recipients []string, trends model.TrendsSummary) (distributor.Summary, error)
}

// Pipeline runs one complete newsletter cycle: analysis, state update,
// trends, distribution.
type Pipeline struct {
	// Validate checks the configuration before anything else runs.
	Validate    func() error
	Store       FundStore
	Analyzer    analyzer.Analyzer
	Trends      TrendSource
	Subscribers subscriber.Source
	Mailer      Mailer
	Recorder    recorder.Recorder
	Notifier    notifier.Notifier
	Logger      *log.Logger

	Now      func() time.Time
	NewRunID func() string

	running atomic.Bool
}

// Running reports whether an analysis run is active.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run executes the cycle. When override is set, the report goes to that
// single address instead of the subscriber list.
func (p *Pipeline) Run(ctx context.Context, trigger Trigger, override string) (stats model.RunStats, err error) {
	if !p.running.CompareAndSwap(false, true) {
		return stats, ErrRunInProgress
	}
	defer p.running.Store(false)

	stats.RunID = p.runID()
	stats.StartedAt = p.now()
	ctx = recorder.WithRunID(ctx, stats.RunID)
	logger := p.Logger

	logger.Info().Str("run_id", stats.RunID).Str("trigger", string(trigger)).Msg("analysis run started")
	fundName := ""
	defer func() {
		stats.FinishedAt = p.now()
		p.finish(ctx, trigger, fundName, stats, err)
	}()

	if p.Validate != nil {
		if err := p.Validate(); err != nil {
			return stats, err
		}
	}

	cfg, err := p.Store.Config()
	if err != nil {
		return stats, err
	}
	fundName = cfg.FundName

	tickers := cfg.Tickers()
	stats.Total = len(tickers)
	results := make(map[string]model.HoldingResult, len(tickers))
	for i, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("analysis interrupted: %w", err)
		}
		logger.Info().Str("run_id", stats.RunID).Str("ticker", ticker).
			Str("position", fmt.Sprintf("%d/%d", i+1, len(tickers))).Msg("analyzing ticker")
		res, ok := p.Analyzer.Analyze(ctx, ticker)
		if !ok {
			stats.Failed++
			continue
		}
		results[ticker] = *res
		stats.Successful++
	}

	if _, err := p.Store.Replace(results); err != nil {
		logger.Error().Err(err).Str("run_id", stats.RunID).Msg("failed to save fund state")
		return stats, err
	}
	logger.Info().Str("run_id", stats.RunID).
		Int("successful", stats.Successful).Int("failed", stats.Failed).Int("total", stats.Total).
		Msg("analysis complete")

	trends := p.Trends.Fetch(ctx)

	var recipients []string
	if override != "" {
		recipients = []string{override}
	} else {
		var serr error
		recipients, serr = p.Subscribers.Emails(ctx)
		if serr != nil {
			logger.Error().Err(serr).Str("run_id", stats.RunID).Msg("distribution error")
			stats.DistributionError = serr.Error()
			return stats, nil
		}
	}
	stats.Recipients = len(recipients)
	logger.Info().Str("run_id", stats.RunID).Int("recipients", len(recipients)).Msg("distributing report")

	sum, err := p.Mailer.Distribute(ctx, recipients, trends)
	stats.Sent = sum.Sent
	stats.SendFailed = sum.Failed
	if err != nil {
		logger.Error().Err(err).Str("run_id", stats.RunID).Msg("failed to distribute report")
		return stats, err
	}
	return stats, nil
}

func (p *Pipeline) finish(ctx context.Context, trigger Trigger, fundName string, stats model.RunStats, runErr error) {
	evt := &recorder.RunEvent{
		RunID:      stats.RunID,
		Trigger:    string(trigger),
		StartedAt:  stats.StartedAt,
		FinishedAt: stats.FinishedAt,
		Total:      stats.Total,
		Successful: stats.Successful,
		Failed:     stats.Failed,
		Recipients: stats.Recipients,
		Sent:       stats.Sent,
		SendFailed: stats.SendFailed,
	}
	if stats.DistributionError != "" {
		evt.Error = stats.DistributionError
	}
	if runErr != nil {
		evt.Error = runErr.Error()
		p.Logger.Error().Err(runErr).Str("run_id", stats.RunID).Msg("analysis run failed")
	} else {
		p.Logger.Info().Str("run_id", stats.RunID).Dur("duration", stats.FinishedAt.Sub(stats.StartedAt)).Msg("analysis run finished")
	}
	if p.Recorder != nil {
		if err := p.Recorder.RecordRun(evt); err != nil {
			p.Logger.Warn().Err(err).Str("run_id", stats.RunID).Msg("record run")
		}
	}
	if p.Notifier != nil {
		// the run context may already be cancelled; the summary still goes out
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if err := p.Notifier.Notify(nctx, notifier.FormatRunSummary(fundName, stats, runErr)); err != nil {
			p.Logger.Warn().Err(err).Str("run_id", stats.RunID).Msg("operator notification failed")
		}
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) runID() string {
	if p.NewRunID != nil {
		return p.NewRunID()
	}
	return uuid.NewString()
}
