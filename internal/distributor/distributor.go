// Package distributor sends the rendered newsletter to every recipient.
package distributor

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"FundLetter/internal/mailer"
	"FundLetter/internal/model"
	"FundLetter/internal/recorder"
	"FundLetter/internal/report"
)

// Documents provides the fund definition and the latest state.
type Documents interface {
	Config() (*model.FundConfig, error)
	State() (*model.FundState, error)
}

// Summary counts the outcomes of one batch.
type Summary struct {
	Recipients int
	Sent       int
	Failed     int
}

// Distributor renders the report once per batch and mails it to each recipient in turn.
type Distributor struct {
	Docs     Documents
	Renderer *report.Renderer
	Sender   mailer.Sender
	Recorder recorder.Recorder
	Logger   *log.Logger
	// Interval is the pause after each successful send.
	Interval time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Subject returns the e-mail subject for a fund on a given day.
func Subject(fundName string, day time.Time) string {
	return fmt.Sprintf("%s Holdings Analysis - %s", fundName, day.Format("2006-01-02"))
}

// Render loads the documents and renders the report at now.
func (d *Distributor) Render(trends model.TrendsSummary, now time.Time) (string, *model.FundConfig, error) {
	cfg, err := d.Docs.Config()
	if err != nil {
		return "", nil, err
	}
	state, err := d.Docs.State()
	if err != nil {
		return "", nil, err
	}
	html, err := d.Renderer.Render(state, cfg, trends, now)
	if err != nil {
		return "", nil, err
	}
	return html, cfg, nil
}

// Distribute sends the report to every recipient. Individual send failures
// are logged and recorded but never returned; only a render failure is.
func (d *Distributor) Distribute(ctx context.Context, recipients []string, trends model.TrendsSummary) (Summary, error) {
	sum := Summary{Recipients: len(recipients)}
	if len(recipients) == 0 {
		d.Logger.Warn().Msg("no recipients, nothing to send")
		return sum, nil
	}

	now := d.now()
	html, cfg, err := d.Render(trends, now)
	if err != nil {
		return sum, fmt.Errorf("render report: %w", err)
	}
	fundName := cfg.FundName
	if fundName == "" {
		fundName = report.DefaultBranding
	}
	subject := Subject(fundName, now)
	runID := recorder.RunID(ctx)

	total := len(recipients)
	for i, to := range recipients {
		if err := ctx.Err(); err != nil {
			d.Logger.Warn().Err(err).Int("remaining", total-i).Msg("distribution cancelled")
			break
		}
		position := fmt.Sprintf("%d/%d", i+1, total)

		evt := &recorder.DeliveryEvent{RunID: runID, Recipient: to, Position: i + 1, SentAt: d.now()}
		sendErr := d.Sender.Send(ctx, to, subject, html)
		if sendErr != nil {
			sum.Failed++
			evt.Error = sendErr.Error()
			d.Logger.Error().Err(sendErr).Str("recipient", to).Str("position", position).Msg("failed to send report")
		} else {
			sum.Sent++
			evt.Success = true
			d.Logger.Info().Str("recipient", to).Str("position", position).Msg("report sent")
		}
		if err := d.Recorder.RecordDelivery(evt); err != nil {
			d.Logger.Warn().Err(err).Str("recipient", to).Msg("record delivery")
		}

		if sendErr == nil && i < total-1 && d.Interval > 0 {
			if err := d.sleep(ctx, d.Interval); err != nil {
				d.Logger.Warn().Err(err).Int("remaining", total-i-1).Msg("distribution cancelled")
				break
			}
		}
	}

	d.Logger.Info().Int("sent", sum.Sent).Int("failed", sum.Failed).Int("total", total).Msg("distribution finished")
	return sum, nil
}

func (d *Distributor) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Distributor) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
