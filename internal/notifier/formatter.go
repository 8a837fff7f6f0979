package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"FundLetter/internal/model"
)

// FormatRunSummary formats the outcome of one run for the operator chat.
func FormatRunSummary(fundName string, stats model.RunStats, runErr error) string {
	var b strings.Builder

	icon := "✅"
	if runErr != nil {
		icon = "❌"
	} else if stats.Failed > 0 || stats.SendFailed > 0 || stats.DistributionError != "" {
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s\n\n", icon, html.EscapeString(fundName), stats.StartedAt.Format("2006-01-02")))

	b.WriteString(fmt.Sprintf("Holdings analyzed: %d/%d", stats.Successful, stats.Total))
	if stats.Failed > 0 {
		b.WriteString(fmt.Sprintf(" (%d failed)", stats.Failed))
	}
	b.WriteString("\n")
	if stats.Recipients > 0 {
		b.WriteString(fmt.Sprintf("Reports sent: %d/%d", stats.Sent, stats.Recipients))
		if stats.SendFailed > 0 {
			b.WriteString(fmt.Sprintf(" (%d failed)", stats.SendFailed))
		}
		b.WriteString("\n")
	}
	if !stats.FinishedAt.IsZero() && !stats.StartedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Duration: %s\n", stats.FinishedAt.Sub(stats.StartedAt).Round(time.Second)))
	}

	if stats.DistributionError != "" {
		b.WriteString(fmt.Sprintf("\n<b>Distribution error:</b> %s\n", html.EscapeString(stats.DistributionError)))
	}
	if runErr != nil {
		b.WriteString(fmt.Sprintf("\n<b>Error:</b> %s\n", html.EscapeString(runErr.Error())))
	}
	b.WriteString(fmt.Sprintf("\nRun: <code>%s</code>", html.EscapeString(stats.RunID)))
	return b.String()
}
