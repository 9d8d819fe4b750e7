package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"flappyq/reinforcement"
	"flappyq/server/fastview"
	"flappyq/server/progress_views"
	"flappyq/server/root_view"

	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/sirupsen/logrus"
)

const (
	// pollPeriod is how often live progress is sampled between eval-interval pushes.
	pollPeriod = time.Second
	// Time allowed for in-flight requests on shutdown.
	shutdownGracePeriod = 5 * time.Second
)

// ProgressSource returns the current progress of a run; it must be safe for concurrent use.
type ProgressSource func() reinforcement.Progress

// Server serves a single dashboard page, to a single client, over a single websocket.
// The root view's update channel has one consumer, so a second concurrent page gets no
// updates until the first disconnects.
type Server struct {
	addr     string
	current  ProgressSource
	rootView *root_view.RootView
	router   *mux.Router
	log      logrus.FieldLogger
}

// NewServer builds the views. Progress is sampled from current every pollPeriod and merged
// with whatever is pushed on pushes.
func NewServer(
	ctx context.Context,
	addr string,
	current ProgressSource,
	pushes <-chan reinforcement.Progress,
	log logrus.FieldLogger,
) (*Server, error) {
	done := ctx.Done()
	progress := channerics.Merge(done, poll(done, current, pollPeriod), pushes)
	rootView, err := root_view.NewRootView(ctx, progress)
	if err != nil {
		return nil, fmt.Errorf("root view: %w", err)
	}

	server := &Server{
		addr:     addr,
		current:  current,
		rootView: rootView,
		log:      log,
	}
	server.router = server.routes()
	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	router.HandleFunc("/progress", server.serveProgress).Methods(http.MethodGet)
	return router
}

// Serve listens until ctx is done, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	server.log.WithField("addr", server.addr).Info("dashboard listening")

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(server.rootView.Updates(), w, r, server.log)
	if err != nil {
		server.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	if err = cli.Sync(); err != nil {
		server.log.WithError(err).Warn("websocket client failed")
	}
}

func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	panel := progress_views.Convert(server.current())
	if err := renderTemplate(w, server.rootView, panel); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (server *Server) serveProgress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(server.current()); err != nil {
		server.log.WithError(err).Warn("progress encode failed")
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}
	return t.Execute(w, data)
}

// poll samples current on every tick until done.
func poll(
	done <-chan struct{},
	current ProgressSource,
	period time.Duration,
) <-chan reinforcement.Progress {
	output := make(chan reinforcement.Progress)
	go func() {
		defer close(output)
		for range channerics.NewTicker(done, period) {
			select {
			case output <- current():
			case <-done:
				return
			}
		}
	}()
	return output
}
