package report

import (
	"sort"

	"FundLetter/internal/model"
)

// ActionCounts tallies holding actions. Unknown actions count as hold.
type ActionCounts struct {
	Buy  int
	Sell int
	Hold int
}

// SectorSentiment tallies agent signals of one sector.
type SectorSentiment struct {
	Name     string
	Holdings int
	Bullish  int
	Bearish  int
	Neutral  int
}

// Overview summarizes a fund state against its configuration.
type Overview struct {
	Total      int
	Successful int
	Failed     int
	Actions    ActionCounts
	Sectors    []SectorSentiment
}

// group is one rendered sector with the tickers that have results.
type group struct {
	Name    string
	Tickers []string
}

// OtherGroupName holds tickers present in the state but not in fund.json.
const OtherGroupName = "Other Holdings"

// layout walks the configuration in order and returns the sector groups with
// analyzed tickers, plus the overview counts. Each ticker is placed once.
func layout(state *model.FundState, cfg *model.FundConfig) ([]group, Overview) {
	var ov Overview
	var groups []group
	placed := make(map[string]bool)

	for _, key := range cfg.CategoryKeys() {
		cat := cfg.Holdings[key]
		name := cat.Name
		if name == "" {
			name = key
		}
		sector := SectorSentiment{Name: name}
		g := group{Name: name}

		for _, ticker := range cat.Holdings {
			if ticker == "" || placed[ticker] {
				continue
			}
			placed[ticker] = true
			sector.Holdings++
			ov.Total++

			res, ok := state.Holdings[ticker]
			if !ok {
				ov.Failed++
				continue
			}
			ov.Successful++
			tally(&ov.Actions, &sector, res)
			g.Tickers = append(g.Tickers, ticker)
		}

		ov.Sectors = append(ov.Sectors, sector)
		if len(g.Tickers) > 0 {
			groups = append(groups, g)
		}
	}

	var extra []string
	for ticker := range state.Holdings {
		if !placed[ticker] {
			extra = append(extra, ticker)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		sector := SectorSentiment{Name: OtherGroupName, Holdings: len(extra)}
		for _, ticker := range extra {
			tally(&ov.Actions, &sector, state.Holdings[ticker])
		}
		ov.Total += len(extra)
		ov.Successful += len(extra)
		ov.Sectors = append(ov.Sectors, sector)
		groups = append(groups, group{Name: OtherGroupName, Tickers: extra})
	}

	return groups, ov
}

func tally(actions *ActionCounts, sector *SectorSentiment, res model.HoldingResult) {
	switch res.Action.Normalize() {
	case model.ActionBuy:
		actions.Buy++
	case model.ActionSell:
		actions.Sell++
	default:
		actions.Hold++
	}
	for _, s := range res.AgentSignals {
		switch s.Signal.Normalize() {
		case model.SignalBullish:
			sector.Bullish++
		case model.SignalBearish:
			sector.Bearish++
		default:
			sector.Neutral++
		}
	}
}

// Summarize returns the overview counts for a state.
func Summarize(state *model.FundState, cfg *model.FundConfig) Overview {
	_, ov := layout(state, cfg)
	return ov
}
