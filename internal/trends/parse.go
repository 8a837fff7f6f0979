package trends

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"FundLetter/internal/model"
)

var (
	ErrMissingSummary = errors.New("response has no summary")
	ErrNoFields       = errors.New("no summary or highlights found in response")
)

// Parsed is the outcome of a successful parse.
type Parsed struct {
	Trends model.TrendsSummary
	// Attempt names the parser that succeeded.
	Attempt string
	// DefaultHighlights is set when the fallback highlight list was substituted.
	DefaultHighlights bool
}

type attempt struct {
	name  string
	parse func(text string) (map[string]json.RawMessage, error)
}

// attempts run in order; the first one that yields a JSON object wins.
var attempts = []attempt{
	{"strict", parseObject},
	{"normalized", func(text string) (map[string]json.RawMessage, error) {
		return parseObject(escapeControlInStrings(text))
	}},
	{"extracted", parseExtracted},
}

// Parse turns a free-text model response into a trends summary.
func Parse(content string) (Parsed, error) {
	text := stripFences(content)

	var errs []error
	for _, a := range attempts {
		fields, err := a.parse(text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
			continue
		}
		p, err := fromFields(fields)
		if err != nil {
			return Parsed{}, err
		}
		p.Attempt = a.name
		return p, nil
	}
	return Parsed{}, errors.Join(errs...)
}

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\r?\n?(.*?)```")

// stripFences returns the body of the first markdown code fence, or the trimmed text.
func stripFences(content string) string {
	text := strings.TrimSpace(content)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// an unterminated fence still gets its opening line removed
	if strings.HasPrefix(text, "```") {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			return strings.TrimSpace(text[i+1:])
		}
	}
	return text
}

func parseObject(text string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("not a JSON object")
	}
	return fields, nil
}

// escapeControlInStrings escapes raw newlines, carriage returns and tabs
// appearing inside JSON string literals.
func escapeControlInStrings(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false
	for _, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	summaryRe    = regexp.MustCompile(`(?s)"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	highlightsRe = regexp.MustCompile(`(?s)"highlights"\s*:\s*\[(.*?)\]`)
	stringRe     = regexp.MustCompile(`(?s)"((?:[^"\\]|\\.)*)"`)
)

// parseExtracted pulls the summary string and the highlights list out of
// text that is not valid JSON and reassembles them into an object.
func parseExtracted(text string) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)

	if m := summaryRe.FindStringSubmatch(text); m != nil {
		raw := `"` + escapeControl(m[1]) + `"`
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			fields["summary"] = json.RawMessage(raw)
		}
	}

	if m := highlightsRe.FindStringSubmatch(text); m != nil {
		raw := "[" + escapeControlInStrings(m[1]) + "]"
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			// malformed list, keep whatever quoted items it has
			items = items[:0]
			for _, sm := range stringRe.FindAllStringSubmatch(m[1], -1) {
				var s string
				if err := json.Unmarshal([]byte(`"`+escapeControl(sm[1])+`"`), &s); err == nil {
					items = append(items, s)
				}
			}
		}
		if b, err := json.Marshal(items); err == nil {
			fields["highlights"] = b
		}
	}

	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	return fields, nil
}

func escapeControl(s string) string {
	return strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(s)
}

// fromFields validates a parsed object. A missing summary is an error; missing,
// empty or malformed highlights are replaced by the fallback list.
func fromFields(fields map[string]json.RawMessage) (Parsed, error) {
	var p Parsed

	raw, ok := fields["summary"]
	if !ok {
		return p, ErrMissingSummary
	}
	if err := json.Unmarshal(raw, &p.Trends.Summary); err != nil {
		return p, fmt.Errorf("summary is not a string: %w", err)
	}
	p.Trends.Summary = strings.TrimSpace(p.Trends.Summary)
	if p.Trends.Summary == "" {
		return p, ErrMissingSummary
	}

	var items []string
	if raw, ok := fields["highlights"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			items = nil
		}
	}
	for _, h := range items {
		if h = strings.TrimSpace(h); h != "" {
			p.Trends.Highlights = append(p.Trends.Highlights, h)
		}
	}
	if len(p.Trends.Highlights) == 0 {
		p.Trends.Highlights = defaultHighlights()
		p.DefaultHighlights = true
	}
	return p, nil
}
