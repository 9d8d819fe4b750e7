package reinforcement

import (
	"context"
	"errors"
	"fmt"

	"flappyq/models"

	"github.com/sirupsen/logrus"
)

// Environment is the game the agent plays. Calls are synchronous; a hung call blocks training.
type Environment interface {
	Reset() (models.Observation, error)
	Step(models.Action) (obs models.Observation, reward float64, done bool, info models.Info, err error)
	Close() error
}

// Discretizer maps an observation to its state key. It must be deterministic.
type Discretizer func(models.Observation) models.StateKey

// SnapshotSink receives the full estimate table; each save overwrites the previous one.
type SnapshotSink interface {
	SaveSnapshot(context.Context, map[models.StateKey][]float64) error
}

// ScoreSink receives the per-interval score totals once, when training terminates.
type ScoreSink interface {
	SaveScores(context.Context, []int) error
}

// ProgressFunc is a callback by which the trainer lends progress details at every eval
// interval. It is synchronous and should complete quickly.
type ProgressFunc func(context.Context, Progress)

// Phase is the trainer's position in its lifecycle.
type Phase int

const (
	IDLE Phase = iota
	RUNNING_EPISODE
	EPISODE_DONE
	ABORTED
	TERMINATED
)

func (p Phase) String() string {
	switch p {
	case IDLE:
		return "idle"
	case RUNNING_EPISODE:
		return "running"
	case EPISODE_DONE:
		return "episode-done"
	case ABORTED:
		return "aborted"
	case TERMINATED:
		return "terminated"
	}
	return "unknown"
}

// StopReason says why training terminated.
type StopReason string

const (
	BUDGET_EXHAUSTED StopReason = "budget-exhausted"
	RUNAWAY_ABORT    StopReason = "runaway-abort"
	DEADLINE         StopReason = "deadline"
)

// Summary holds the final metrics of a run.
type Summary struct {
	Episodes        int
	MaxScore        int
	MaxScoreEpisode int
	ExploredStates  int
	IntervalTotals  []int
	Reason          StopReason
}

// ErrNilEnvironment is returned by NewTrainer when it is given nothing to play.
var ErrNilEnvironment = errors.New("trainer requires an environment and a discretizer")

// Trainer drives the episode loop over a single environment.
type Trainer struct {
	env        Environment
	discretize Discretizer
	cfg        *TrainingConfig
	state      *LearnerState
	selector   UCBSelector
	snapshots  SnapshotSink
	scores     ScoreSink
	progressFn ProgressFunc
	log        logrus.FieldLogger
	metrics    *Metrics
	phase      Phase
}

type TrainerOption func(*Trainer)

// WithLearnerState starts from externally restored estimates instead of an empty table.
func WithLearnerState(ls *LearnerState) TrainerOption {
	return func(tr *Trainer) { tr.state = ls }
}

func WithSnapshotSink(sink SnapshotSink) TrainerOption {
	return func(tr *Trainer) { tr.snapshots = sink }
}

func WithScoreSink(sink ScoreSink) TrainerOption {
	return func(tr *Trainer) { tr.scores = sink }
}

func WithProgressFunc(fn ProgressFunc) TrainerOption {
	return func(tr *Trainer) { tr.progressFn = fn }
}

func WithLogger(log logrus.FieldLogger) TrainerOption {
	return func(tr *Trainer) { tr.log = log }
}

// NewTrainer validates cfg and returns an idle trainer.
func NewTrainer(
	env Environment,
	discretize Discretizer,
	cfg *TrainingConfig,
	opts ...TrainerOption,
) (*Trainer, error) {
	if env == nil || discretize == nil {
		return nil, ErrNilEnvironment
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tr := &Trainer{
		env:        env,
		discretize: discretize,
		cfg:        cfg,
		state:      NewLearnerState(),
		selector:   UCBSelector{Weight: cfg.UCBWeight()},
		log:        logrus.StandardLogger(),
		metrics:    NewMetrics(),
		phase:      IDLE,
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr, nil
}

// State returns the learner state; it must not be touched while Train runs.
func (tr *Trainer) State() *LearnerState {
	return tr.state
}

// Metrics returns the live counters, safe to read from any goroutine.
func (tr *Trainer) Metrics() *Metrics {
	return tr.metrics
}

func (tr *Trainer) Phase() Phase {
	return tr.phase
}

func (tr *Trainer) setPhase(phase Phase) {
	tr.phase = phase
	tr.metrics.setPhase(phase)
}

// Train runs episodes until the budget is exhausted, ctx is done, or an episode's score runs
// away past RUNAWAY_SCORE. Environment failures end training and are returned; sink failures
// are logged and training continues. The environment is closed before Train returns, except
// after a runaway abort, which makes no further environment calls at all.
func (tr *Trainer) Train(ctx context.Context) (summary *Summary, err error) {
	summary = &Summary{MaxScoreEpisode: -1, Reason: BUDGET_EXHAUSTED}
	lr, discount := tr.cfg.LearningRate(), tr.cfg.Discount()
	tr.log.WithFields(logrus.Fields{
		"episodes":       tr.cfg.MaxEpisodes,
		"learning_rate":  lr,
		"discount":       discount,
		"ucb_weight":     tr.selector.Weight,
		"restored_state": tr.state.Store.Size(),
	}).Info("training started")

	intervalTotal, intervalEpisodes := 0, 0
	for episode := 0; episode < tr.cfg.MaxEpisodes; episode++ {
		if ctx.Err() != nil {
			summary.Reason = DEADLINE
			break
		}

		tr.setPhase(RUNNING_EPISODE)
		score, aborted, epErr := tr.runEpisode(episode, lr, discount, summary)
		if epErr != nil {
			tr.setPhase(TERMINATED)
			err = fmt.Errorf("episode %d: %w", episode, epErr)
			if closeErr := tr.env.Close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
			return
		}
		if aborted {
			tr.setPhase(ABORTED)
			summary.Reason = RUNAWAY_ABORT
			tr.log.WithFields(logrus.Fields{
				"episode": episode,
				"score":   score,
			}).Warn("runaway score, aborting training")
			break
		}

		tr.setPhase(EPISODE_DONE)
		if episode%tr.cfg.CheckpointInterval == 0 {
			tr.saveSnapshot(ctx, episode)
		}
		summary.Episodes++
		tr.metrics.episodeDone(summary.Episodes, tr.state.Store.Size(), score)

		intervalTotal += score
		intervalEpisodes++
		if summary.Episodes%tr.cfg.EvalInterval == 0 {
			tr.intervalDone(ctx, summary, intervalTotal, intervalEpisodes)
			intervalTotal, intervalEpisodes = 0, 0
		}
	}

	if intervalEpisodes > 0 {
		tr.intervalDone(ctx, summary, intervalTotal, intervalEpisodes)
	}
	err = tr.terminate(ctx, summary)
	return
}

// runEpisode plays one episode and, unless it was aborted, applies the backward update.
// It returns the episode's final score.
func (tr *Trainer) runEpisode(
	episode int,
	lr, discount float64,
	summary *Summary,
) (score int, aborted bool, err error) {
	obs, err := tr.env.Reset()
	if err != nil {
		return 0, false, fmt.Errorf("reset: %w", err)
	}

	state := tr.discretize(obs)
	traj := models.Trajectory{}
	prevScore := 0
	for {
		action := tr.selector.Select(tr.state, state, episode)
		nextObs, _, done, info, stepErr := tr.env.Step(action)
		if stepErr != nil {
			return score, false, fmt.Errorf("step: %w", stepErr)
		}
		next := tr.discretize(nextObs)
		score = info.Score

		if score > summary.MaxScore {
			summary.MaxScore = score
			summary.MaxScoreEpisode = episode
		}
		tr.metrics.observeScore(score, episode)

		if score > models.RUNAWAY_SCORE {
			return score, true, nil
		}

		var reward float64
		if reward, prevScore, err = Shape(prevScore, score, done, next, len(traj)); err != nil {
			return score, false, err
		}
		traj = append(traj, models.Transition{
			State:     state,
			Action:    action,
			Reward:    reward,
			Successor: next,
		})

		if done {
			ApplyBackward(tr.state.Store, traj, lr, discount)
			return score, false, nil
		}
		state = next
	}
}

func (tr *Trainer) intervalDone(ctx context.Context, summary *Summary, total, episodes int) {
	summary.IntervalTotals = append(summary.IntervalTotals, total)
	tr.metrics.intervalDone(total, episodes)
	tr.log.WithFields(logrus.Fields{
		"episodes": summary.Episodes,
		"average":  float64(total) / float64(episodes),
		"explored": tr.state.Store.Size(),
	}).Info("eval interval complete")

	if tr.progressFn != nil {
		tr.progressFn(ctx, tr.metrics.Progress())
	}
}

// terminate emits the final metrics and the summary checkpoint, then closes the environment
// unless training was aborted.
func (tr *Trainer) terminate(ctx context.Context, summary *Summary) error {
	tr.setPhase(TERMINATED)
	summary.ExploredStates = tr.state.Store.Size()

	// Sinks still get the final artifacts after a deadline, so they run on a fresh context.
	saveCtx := context.WithoutCancel(ctx)
	if tr.scores != nil {
		if err := tr.scores.SaveScores(saveCtx, summary.IntervalTotals); err != nil {
			tr.log.WithError(err).Error("failed to save interval scores")
		}
	}
	tr.saveSnapshot(saveCtx, summary.Episodes)

	tr.log.WithFields(logrus.Fields{
		"reason":            summary.Reason,
		"episodes":          summary.Episodes,
		"explored":          summary.ExploredStates,
		"max_score":         summary.MaxScore,
		"max_score_episode": summary.MaxScoreEpisode,
		"interval_totals":   summary.IntervalTotals,
	}).Info("training terminated")

	if summary.Reason == RUNAWAY_ABORT {
		return nil
	}
	if err := tr.env.Close(); err != nil {
		return fmt.Errorf("close environment: %w", err)
	}
	return nil
}

func (tr *Trainer) saveSnapshot(ctx context.Context, episode int) {
	if tr.snapshots == nil {
		return
	}
	if err := tr.snapshots.SaveSnapshot(ctx, tr.state.Store.Snapshot()); err != nil {
		tr.log.WithError(err).WithField("episode", episode).Error("failed to save snapshot")
	}
}
