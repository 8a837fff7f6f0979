// Package report renders the fund newsletter as a single self-contained
// HTML document.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"FundLetter/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateName is the report template file, embedded and overridable.
const TemplateName = "report.html.tmpl"

// DefaultBranding appears in the header fallback and the footer.
const DefaultBranding = "FundLetter"

// Options configures a Renderer.
type Options struct {
	// TemplateDir, when set and containing TemplateName, overrides the embedded template.
	TemplateDir  string
	LogoURL      string
	ContactEmail string
	Branding     string
	// Precision is the number of decimal places of rendered confidences (0 or 1).
	Precision int32
}

// Renderer turns fund state and trends into the newsletter HTML.
type Renderer struct {
	opts Options
	tmpl *template.Template
	md   goldmark.Markdown
}

// NewRenderer parses the report template.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Branding == "" {
		opts.Branding = DefaultBranding
	}
	tmpl, err := loadTemplate(opts.TemplateDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{opts: opts, tmpl: tmpl, md: goldmark.New()}, nil
}

func loadTemplate(dir string) (*template.Template, error) {
	if dir != "" {
		p := filepath.Join(dir, TemplateName)
		if _, err := os.Stat(p); err == nil {
			tmpl, err := template.ParseFiles(p)
			if err != nil {
				return nil, fmt.Errorf("parse template %s: %w", p, err)
			}
			return tmpl, nil
		}
	}
	tmpl, err := template.ParseFS(templateFS, "templates/"+TemplateName)
	if err != nil {
		return nil, fmt.Errorf("parse embedded template: %w", err)
	}
	return tmpl, nil
}

type view struct {
	FundName     string
	Branding     string
	Date         string
	GeneratedAt  string
	Year         int
	LogoURL      string
	ContactEmail string
	Summary      template.HTML
	Highlights   []string
	Overview     Overview
	Groups       []groupView
}

type groupView struct {
	Name     string
	Holdings []holdingView
}

type holdingView struct {
	Ticker          string
	ActionLabel     string
	Badge           string
	Confidence      string
	ConfidenceClass string
	Signals         []signalView
	Reasoning       string
}

type signalView struct {
	Agent      string
	CardClass  string
	Signal     string
	DotClass   string
	Confidence string
}

// Render produces the report. The output depends only on the inputs and now.
func (r *Renderer) Render(state *model.FundState, cfg *model.FundConfig, trends model.TrendsSummary, now time.Time) (string, error) {
	if state == nil {
		state = model.NewFundState(nil)
	}
	if cfg == nil {
		cfg = &model.FundConfig{}
	}

	summary, err := r.summaryHTML(trends.Summary)
	if err != nil {
		return "", err
	}

	groups, ov := layout(state, cfg)
	v := view{
		FundName:     cfg.FundName,
		Branding:     r.opts.Branding,
		Date:         now.Format("January 2, 2006"),
		GeneratedAt:  now.Format("2006-01-02 15:04:05 MST"),
		Year:         now.Year(),
		LogoURL:      r.opts.LogoURL,
		ContactEmail: r.opts.ContactEmail,
		Summary:      summary,
		Highlights:   trends.Highlights,
		Overview:     ov,
	}
	if v.FundName == "" {
		v.FundName = r.opts.Branding
	}
	for _, g := range groups {
		gv := groupView{Name: g.Name}
		for _, ticker := range g.Tickers {
			gv.Holdings = append(gv.Holdings, r.holding(ticker, state.Holdings[ticker]))
		}
		v.Groups = append(v.Groups, gv)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("execute report template: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) holding(ticker string, res model.HoldingResult) holdingView {
	hv := holdingView{
		Ticker:          ticker,
		ActionLabel:     ActionLabel(res.Action),
		Badge:           ActionBadge(res.Action).String(),
		Confidence:      res.Confidence.Format(r.opts.Precision),
		ConfidenceClass: ConfidenceClass(res.Confidence),
		Reasoning:       strings.TrimSpace(string(res.Reasoning)),
	}
	if hv.Reasoning == "" {
		hv.Reasoning = "No reasoning available"
	}
	for _, s := range res.AgentSignals {
		card := "signal-card"
		if b := AgentBucket(s.AgentName); b != "" {
			card += " signal-" + b
		}
		sig := s.Signal.Normalize()
		hv.Signals = append(hv.Signals, signalView{
			Agent:      s.AgentName,
			CardClass:  card,
			Signal:     strings.ToUpper(string(sig)),
			DotClass:   SignalClass(sig),
			Confidence: s.Confidence.Format(r.opts.Precision),
		})
	}
	return hv
}

// summaryHTML renders the trends summary as paragraphs. Raw HTML in the
// summary is dropped by goldmark's default renderer.
func (r *Renderer) summaryHTML(summary string) (template.HTML, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(summary), &buf); err != nil {
		return "", fmt.Errorf("render trends summary: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// WriteFile writes a rendered report to disk, creating the parent directory.
func WriteFile(path, html string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
