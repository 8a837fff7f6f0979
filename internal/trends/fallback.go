package trends

import "FundLetter/internal/model"

// FallbackSummary replaces the trend summary when the model response is unusable.
const FallbackSummary = "We were unable to retrieve this week's trend briefing. " +
	"The holdings analysis below is unaffected and reflects the latest run. " +
	"The trends section will return with next week's edition."

// FallbackHighlights is used whenever a response carries no usable highlights.
var FallbackHighlights = []string{
	"Manufacturing investment announcements continue to shape the sector outlook",
	"Policy incentives remain a key driver of domestic production capacity",
	"Supply chain reshoring efforts are progressing across strategic industries",
	"Workforce development is a recurring constraint on new facility timelines",
	"Check back next week for an updated summary of developments",
}

// Fallback returns the static trends summary.
func Fallback() model.TrendsSummary {
	return model.TrendsSummary{
		Summary:    FallbackSummary,
		Highlights: defaultHighlights(),
	}
}

func defaultHighlights() []string {
	return append([]string(nil), FallbackHighlights...)
}
