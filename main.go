/*
Flappyq trains a tabular Q-learner with upper-confidence-bound exploration to play a
flappy-bird-style game. The agent sees only the horizontal and vertical distance to the next
pipe gap, discretized to a grid, and learns from shaped rewards by a single backward pass over
each episode. Training progress can be watched on a small realtime dashboard.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"

	"flappyq/checkpoint"
	"flappyq/flappy_world"
	"flappyq/reinforcement"
	"flappyq/server"

	"github.com/joho/godotenv"
	"github.com/logrusorgru/aurora"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type appFlags struct {
	configPath string
	debug      bool
	resume     bool
	serve      bool
	host       string
	port       string
}

func (af *appFlags) addr() string {
	return af.host + ":" + af.port
}

// parseFlags reads the command line; FLAPPYQ_CONFIG, possibly from .env, sets the default
// config path.
func parseFlags(args []string) (*appFlags, error) {
	defaultConfig := os.Getenv("FLAPPYQ_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "./config.yaml"
	}

	af := &appFlags{}
	flags := flag.NewFlagSet("flappyq", flag.ContinueOnError)
	flags.StringVar(&af.configPath, "config", defaultConfig, "path of the training config")
	flags.BoolVar(&af.debug, "debug", false, "debug logging and frame printing")
	flags.BoolVar(&af.resume, "resume", false, "resume from the last snapshot")
	flags.BoolVar(&af.serve, "serve", false, "serve the progress dashboard")
	flags.StringVar(&af.host, "host", "", "The host ip")
	flags.StringVar(&af.port, "port", "8080", "The host port")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return af, nil
}

func newLogger(af *appFlags) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if af.debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func runApp(ctx context.Context, af *appFlags, out io.Writer, log *logrus.Logger) (err error) {
	var cfg *reinforcement.TrainingConfig
	if cfg, err = reinforcement.FromYaml(af.configPath); err != nil {
		return fmt.Errorf("config %s: %w", af.configPath, err)
	}

	appCtx, appCancel := context.WithCancel(ctx)
	defer appCancel()

	trainingCtx, trainingCancel, err := cfg.WithTrainingDeadline(appCtx)
	if err != nil {
		return err
	}
	defer trainingCancel()

	store, err := checkpoint.Open(appCtx, cfg.Checkpoint)
	if err != nil {
		return err
	}
	defer store.Close()
	log.WithFields(logrus.Fields{
		"run_id": store.RunID(),
		"sink":   cfg.Checkpoint.Sink,
	}).Info("checkpoint store opened")

	opts := []reinforcement.TrainerOption{
		reinforcement.WithSnapshotSink(store),
		reinforcement.WithScoreSink(checkpoint.NewScoreFile(
			cfg.Checkpoint.ScoresPath,
			cfg.Checkpoint.ChartPath,
			cfg.EvalInterval)),
		reinforcement.WithLogger(log),
	}
	if af.resume {
		var restored *reinforcement.LearnerState
		if restored, err = restore(appCtx, store, log); err != nil {
			return err
		}
		opts = append(opts, reinforcement.WithLearnerState(restored))
	}

	game := flappy_world.NewGame(cfg.Seed)
	pushes := make(chan reinforcement.Progress, 1)
	opts = append(opts, reinforcement.WithProgressFunc(
		func(_ context.Context, p reinforcement.Progress) {
			report(out, p)
			if af.debug {
				flappy_world.ShowFrame(game)
			}
			// Drop the push if the dashboard is behind; it also polls.
			select {
			case pushes <- p:
			default:
			}
		}))

	trainer, err := reinforcement.NewTrainer(game, flappy_world.Discretize, cfg, opts...)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(appCtx)
	group.Go(func() error {
		summary, trainErr := trainer.Train(trainingCtx)
		if trainErr != nil {
			return trainErr
		}
		summarize(out, summary)
		return nil
	})

	if af.serve {
		var srv *server.Server
		if srv, err = server.NewServer(groupCtx, af.addr(), trainer.Metrics().Progress, pushes, log); err != nil {
			appCancel()
			return errors.Join(err, group.Wait())
		}
		group.Go(func() error {
			return srv.Serve(groupCtx)
		})
	}

	return group.Wait()
}

// restore loads the last snapshot, or starts empty if none was saved.
func restore(
	ctx context.Context,
	store checkpoint.Store,
	log logrus.FieldLogger,
) (*reinforcement.LearnerState, error) {
	values, err := store.Load(ctx)
	if errors.Is(err, checkpoint.ErrNoSnapshot) {
		log.Warn("no snapshot to resume from, starting empty")
		return reinforcement.NewLearnerState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	log.WithField("states", len(values)).Info("resuming from snapshot")
	return reinforcement.RestoredLearnerState(values), nil
}

func report(out io.Writer, p reinforcement.Progress) {
	fmt.Fprintf(out, "%s episodes=%d explored=%d avg=%s max=%d\n",
		aurora.Cyan("interval"),
		p.Episodes,
		p.ExploredStates,
		aurora.Green(fmt.Sprintf("%.3f", p.IntervalAverage)),
		p.MaxScore)
}

func summarize(out io.Writer, summary *reinforcement.Summary) {
	reason := aurora.Green(string(summary.Reason))
	if summary.Reason != reinforcement.BUDGET_EXHAUSTED {
		reason = aurora.Yellow(string(summary.Reason))
	}
	fmt.Fprintf(out, "%s %s episodes=%d explored=%d max=%d (episode %d)\n",
		aurora.Bold("training terminated:"),
		reason,
		summary.Episodes,
		summary.ExploredStates,
		summary.MaxScore,
		summary.MaxScoreEpisode)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Println(err)
		os.Exit(1)
	}

	af, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := newLogger(af)
	if err = runApp(ctx, af, os.Stdout, log); err != nil {
		log.WithError(err).Error("flappyq failed")
		stop()
		os.Exit(1)
	}
}
