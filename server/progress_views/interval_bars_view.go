package progress_views

import (
	"fmt"
	"html/template"

	"flappyq/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// IntervalBarsView is an svg bar chart of the most recent interval score totals.
type IntervalBarsView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewIntervalBarsView(
	done <-chan struct{},
	panels <-chan Panel,
) *IntervalBarsView {
	ib := &IntervalBarsView{id: "intervalbars"}
	ib.updates = channerics.Convert(done, panels, ib.onUpdate)
	return ib
}

func (ib *IntervalBarsView) Updates() <-chan []fastview.EleUpdate {
	return ib.updates
}

// Bar x positions are fixed, only heights and titles change.
func (ib *IntervalBarsView) onUpdate(panel Panel) (ops []fastview.EleUpdate) {
	for _, bar := range panel.Bars {
		ops = append(ops,
			fastview.EleUpdate{
				EleId: bar.Id,
				Ops: []fastview.Op{
					{Key: "y", Value: fmt.Sprintf("%d", bar.Y)},
					{Key: "height", Value: fmt.Sprintf("%d", bar.Height)},
				},
			},
			fastview.EleUpdate{
				EleId: bar.Id + "-title",
				Ops: []fastview.Op{
					{Key: "textContent", Value: barTitle(bar)},
				},
			})
	}
	ops = append(ops, fastview.EleUpdate{
		EleId: ib.id + "-max",
		Ops: []fastview.Op{
			{Key: "textContent", Value: fmt.Sprintf("max interval total: %d", panel.MaxTotal)},
		},
	})
	return
}

func barTitle(bar Bar) string {
	if bar.Interval < 0 {
		return ""
	}
	return fmt.Sprintf("interval %d: %d", bar.Interval, bar.Total)
}

func (ib *IntervalBarsView) Parse(t *template.Template) (name string, err error) {
	name = ib.id
	_, err = t.Funcs(template.FuncMap{"barTitle": barTitle}).Parse(
		`{{ define "` + name + `" }}
		<div style="padding: 20px;">
			<div id="` + ib.id + `-max" style="font-family: monospace;">max interval total: {{ .MaxTotal }}</div>
			<svg id="` + ib.id + `" xmlns='http://www.w3.org/2000/svg'
				width="` + fmt.Sprintf("%d", NUM_BARS*(BAR_WIDTH+BAR_GAP)) + `px"
				height="` + fmt.Sprintf("%d", BAR_HEIGHT) + `px"
				style="background: whitesmoke;">
				{{ range .Bars }}
				<rect id="{{ .Id }}" x="{{ .X }}" y="{{ .Y }}" width="{{ .Width }}" height="{{ .Height }}" fill="steelblue">
					<title id="{{ .Id }}-title">{{ barTitle . }}</title>
				</rect>
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
