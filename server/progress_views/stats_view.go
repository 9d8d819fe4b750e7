package progress_views

import (
	"html/template"

	"flappyq/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatsView is a table of the run's counters.
type StatsView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatsView(
	done <-chan struct{},
	panels <-chan Panel,
) *StatsView {
	sv := &StatsView{id: "stats"}
	sv.updates = channerics.Convert(done, panels, sv.onUpdate)
	return sv
}

func (sv *StatsView) Updates() <-chan []fastview.EleUpdate {
	return sv.updates
}

func (sv *StatsView) onUpdate(panel Panel) (ops []fastview.EleUpdate) {
	for _, stat := range panel.Stats {
		ops = append(ops, fastview.EleUpdate{
			EleId: stat.Id,
			Ops: []fastview.Op{
				{Key: "textContent", Value: stat.Value},
			},
		})
	}
	return
}

func (sv *StatsView) Parse(t *template.Template) (name string, err error) {
	name = sv.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<table id="` + sv.id + `" style="font-family: monospace; padding: 20px;">
			{{ range .Stats }}
			<tr>
				<td>{{ .Label }}</td>
				<td id="{{ .Id }}">{{ .Value }}</td>
			</tr>
			{{ end }}
		</table>
		{{ end }}`)
	return
}
