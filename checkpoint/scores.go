package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ScoreFile writes the per-interval score totals as a JSON array and, if chartPath is set, an
// html line chart of them.
type ScoreFile struct {
	path      string
	chartPath string
	interval  int
}

// NewScoreFile returns a score sink; interval labels the chart's x axis in episodes.
func NewScoreFile(path, chartPath string, interval int) *ScoreFile {
	return &ScoreFile{path: path, chartPath: chartPath, interval: interval}
}

func (sf *ScoreFile) SaveScores(ctx context.Context, totals []int) error {
	if totals == nil {
		totals = []int{}
	}
	data, err := json.Marshal(totals)
	if err != nil {
		return err
	}
	if err = writeFile(sf.path, data); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}

	if sf.chartPath == "" {
		return nil
	}
	f, err := createFile(sf.chartPath)
	if err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	defer f.Close()
	if err = ScoreChart(totals, sf.interval).Render(f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// LoadScores reads a score file written by SaveScores.
func LoadScores(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	totals := []int{}
	return totals, json.Unmarshal(data, &totals)
}

// ScoreChart builds a one-series page of score totals by interval.
func ScoreChart(totals []int, interval int) *components.Page {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "interval scores",
			Subtitle: fmt.Sprintf("sum of episode scores per %d episodes", interval),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	steps := make([]string, 0, len(totals))
	items := make([]opts.LineData, 0, len(totals))
	for i, total := range totals {
		steps = append(steps, fmt.Sprintf("%d", (i+1)*interval))
		items = append(items, opts.LineData{Value: total})
	}
	line.SetXAxis(steps).AddSeries("total", items)

	page := components.NewPage()
	page.AddCharts(line)
	return page
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}
