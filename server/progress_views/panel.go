// progress_views contains views derived from the Panel view-model.
package progress_views

import (
	"fmt"

	"flappyq/reinforcement"
)

const (
	// NUM_BARS is the number of most recent eval intervals charted.
	NUM_BARS   = 40
	BAR_WIDTH  = 12
	BAR_GAP    = 3
	BAR_HEIGHT = 200
)

// Panel flattens a Progress into values immediately usable as view parameters.
type Panel struct {
	Stats []Stat
	Bars  []Bar
	// MaxTotal is the largest charted total, the bars' full-height value.
	MaxTotal int
}

// Stat is a labelled value, displayed as text.
type Stat struct {
	Id    string
	Label string
	Value string
}

// Bar is one eval interval's score total in svg coordinates, y pointing down.
type Bar struct {
	Id       string
	Interval int
	Total    int
	X, Y     int
	Width    int
	Height   int
}

// Convert builds the panel for p. There are always NUM_BARS bars; slots before the first
// charted interval have zero height.
func Convert(p reinforcement.Progress) Panel {
	maxEpisode := "-"
	if p.MaxScoreEpisode >= 0 {
		maxEpisode = fmt.Sprintf("%d", p.MaxScoreEpisode)
	}

	panel := Panel{
		Stats: []Stat{
			{Id: "stat-phase", Label: "phase", Value: p.Phase.String()},
			{Id: "stat-episodes", Label: "episodes", Value: fmt.Sprintf("%d", p.Episodes)},
			{Id: "stat-explored", Label: "explored states", Value: fmt.Sprintf("%d", p.ExploredStates)},
			{Id: "stat-last-score", Label: "last score", Value: fmt.Sprintf("%d", p.LastScore)},
			{Id: "stat-max-score", Label: "max score", Value: fmt.Sprintf("%d", p.MaxScore)},
			{Id: "stat-max-episode", Label: "max score episode", Value: maxEpisode},
			{Id: "stat-interval-avg", Label: "interval average", Value: fmt.Sprintf("%.2f", p.IntervalAverage)},
		},
	}

	totals := p.IntervalTotals
	first := 0
	if len(totals) > NUM_BARS {
		first = len(totals) - NUM_BARS
		totals = totals[first:]
	}
	for _, total := range totals {
		if total > panel.MaxTotal {
			panel.MaxTotal = total
		}
	}

	panel.Bars = make([]Bar, NUM_BARS)
	for i := range panel.Bars {
		bar := Bar{
			Id:       fmt.Sprintf("interval-bar-%d", i),
			Interval: -1,
			X:        i * (BAR_WIDTH + BAR_GAP),
			Y:        BAR_HEIGHT,
			Width:    BAR_WIDTH,
		}
		if i < len(totals) {
			bar.Interval = first + i
			bar.Total = totals[i]
			bar.Height = barHeight(totals[i], panel.MaxTotal)
			bar.Y = BAR_HEIGHT - bar.Height
		}
		panel.Bars[i] = bar
	}
	return panel
}

// Negative totals cannot occur since scores count pipes passed; they are drawn empty.
func barHeight(total, maxTotal int) int {
	if total <= 0 || maxTotal <= 0 {
		return 0
	}
	return total * BAR_HEIGHT / maxTotal
}
