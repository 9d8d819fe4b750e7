package root_view

import (
	"context"
	"html/template"
	"time"

	"flappyq/reinforcement"
	"flappyq/server/fastview"
	"flappyq/server/progress_views"

	channerics "github.com/niceyeti/channerics/channels"
)

// batchRate is the window within which updates for the same element are coalesced.
const batchRate = time.Millisecond * 20

// RootView is the main page: the container for all view components and the wiring of
// their update channels.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView builds the views fed by the progress channel.
func NewRootView(
	ctx context.Context,
	progress <-chan reinforcement.Progress,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[reinforcement.Progress, progress_views.Panel]().
		WithContext(ctx).
		WithModel(progress, progress_views.Convert).
		WithView(func(
			done <-chan struct{},
			panels <-chan progress_views.Panel) fastview.ViewComponent {
			return progress_views.NewStatsView(done, panels)
		}).
		WithView(func(
			done <-chan struct{},
			panels <-chan progress_views.Panel) fastview.ViewComponent {
			return progress_views.NewIntervalBarsView(done, panels)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the single ele-update channel of all views. It supports one consumer.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse adds the main page and every child view to parent and returns the page's name.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	var bodySpec string
	for _, vc := range rv.views {
		var tname string
		if tname, err = vc.Parse(parent); err != nil {
			return
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The page bootstraps the websocket by which the server pushes element updates.
	name = "mainpage"
	_, err = parent.Parse(`
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>flappyq</title>
			<link rel="icon" href="data:,">
			<script>
				const ws = new WebSocket("ws://" + window.location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`)
	return
}

// fanIn merges the views' ele-update channels into a single batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify collects updates and emits them once per rate, keeping only the latest update
// per ele-id. Pending updates are flushed when the source closes.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		order := []string{}
		flush := func() bool {
			if len(order) == 0 {
				return true
			}
			batch := make([]fastview.EleUpdate, 0, len(order))
			for _, id := range order {
				batch = append(batch, data[id])
			}
			select {
			case output <- batch:
				data = map[string]fastview.EleUpdate{}
				order = order[:0]
				return true
			case <-done:
				return false
			}
		}

		ticker := time.NewTicker(rate)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					flush()
					return
				}
				for _, update := range updates {
					if _, seen := data[update.EleId]; !seen {
						order = append(order, update.EleId)
					}
					data[update.EleId] = update
				}
			case <-ticker.C:
				if !flush() {
					return
				}
			}
		}
	}()

	return output
}
