package analyzer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/phuslu/log"

	"FundLetter/internal/model"
)

// TickerPlaceholder in a command argument is replaced by the ticker symbol.
const TickerPlaceholder = "{ticker}"

// ProcessAnalyzer runs the external analysis program once per ticker.
type ProcessAnalyzer struct {
	Command []string
	WorkDir string
	Logger  *log.Logger
}

// NewProcessAnalyzer creates an analyzer for the given command line.
func NewProcessAnalyzer(command []string, workDir string, logger *log.Logger) *ProcessAnalyzer {
	return &ProcessAnalyzer{Command: command, WorkDir: workDir, Logger: logger}
}

// Args returns the command line for a ticker. The ticker is appended when
// no argument carries the placeholder.
func (p *ProcessAnalyzer) Args(ticker string) []string {
	args := make([]string, 0, len(p.Command)+1)
	substituted := false
	for _, a := range p.Command {
		if strings.Contains(a, TickerPlaceholder) {
			a = strings.ReplaceAll(a, TickerPlaceholder, ticker)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, ticker)
	}
	return args
}

// Analyze runs the program and parses its final result.
func (p *ProcessAnalyzer) Analyze(ctx context.Context, ticker string) (*model.HoldingResult, bool) {
	args := p.Args(ticker)
	if len(args) == 0 || args[0] == "" {
		p.Logger.Error().Str("ticker", ticker).Msg("analyzer command not configured")
		return nil, false
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = p.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		p.Logger.Error().
			Str("ticker", ticker).
			Int("exit_code", exitCode).
			Err(err).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("error analyzing ticker")
		return nil, false
	}

	res, err := ParseFinalResult(stdout.String())
	if err != nil {
		p.Logger.Error().Str("ticker", ticker).Err(err).Msg("error parsing analysis result")
		return nil, false
	}
	return res, true
}
