package reinforcement

import (
	"context"
	"errors"
	"io"
	"testing"

	"flappyq/flappy_world"
	"flappyq/models"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
)

// scriptedEnv ends every episode after three steps, scoring one point on the second.
type scriptedEnv struct {
	resets, steps, closes int
	inEpisode             int
	failAfter             int
	// dy is the vertical offset from the gap after every step; zero means 150.
	dy int
}

func (env *scriptedEnv) offset() int {
	if env.dy == 0 {
		return 150
	}
	return env.dy
}

func (env *scriptedEnv) Reset() (models.Observation, error) {
	env.resets++
	env.inEpisode = 0
	return models.Observation{Dx: 100, Dy: 0}, nil
}

func (env *scriptedEnv) Step(action models.Action) (models.Observation, float64, bool, models.Info, error) {
	env.steps++
	if env.failAfter > 0 && env.steps >= env.failAfter {
		return models.Observation{}, 0, false, models.Info{}, errBoom
	}
	env.inEpisode++
	score := 0
	if env.inEpisode >= 2 {
		score = 1
	}
	done := env.inEpisode == 3
	return models.Observation{Dx: 100 - 10*env.inEpisode, Dy: env.offset()}, 1, done, models.Info{Score: score}, nil
}

func (env *scriptedEnv) Close() error {
	env.closes++
	return nil
}

// runawayEnv reports an absurd score on its first step.
type runawayEnv struct {
	scriptedEnv
}

func (env *runawayEnv) Step(action models.Action) (models.Observation, float64, bool, models.Info, error) {
	env.steps++
	return models.Observation{}, 1, false, models.Info{Score: models.RUNAWAY_SCORE + 1}, nil
}

var errBoom = errors.New("boom")

type recordingSink struct {
	snapshots []map[models.StateKey][]float64
	scores    [][]int
	err       error
}

func (sink *recordingSink) SaveSnapshot(ctx context.Context, values map[models.StateKey][]float64) error {
	sink.snapshots = append(sink.snapshots, values)
	return sink.err
}

func (sink *recordingSink) SaveScores(ctx context.Context, totals []int) error {
	sink.scores = append(sink.scores, totals)
	return sink.err
}

func keyOf(obs models.Observation) models.StateKey {
	return models.NewStateKey(obs.Dx, obs.Dy)
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig(episodes int) *TrainingConfig {
	cfg := DefaultConfig()
	cfg.MaxEpisodes = episodes
	cfg.CheckpointInterval = 5
	cfg.EvalInterval = 4
	return cfg
}

func TestTrainer(t *testing.T) {
	Convey("When the trainer is built without an environment", t, func() {
		_, err := NewTrainer(nil, keyOf, DefaultConfig())
		So(err, ShouldEqual, ErrNilEnvironment)
	})

	Convey("When the trainer is given an invalid config", t, func() {
		cfg := DefaultConfig()
		cfg.EvalInterval = 0
		_, err := NewTrainer(&scriptedEnv{}, keyOf, cfg)
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
	})

	Convey("When the episode budget is exhausted", t, func() {
		env := &scriptedEnv{}
		sink := &recordingSink{}
		progress := []Progress{}
		tr, err := NewTrainer(env, keyOf, testConfig(10),
			WithSnapshotSink(sink),
			WithScoreSink(sink),
			WithLogger(quietLogger()),
			WithProgressFunc(func(_ context.Context, p Progress) {
				progress = append(progress, p)
			}),
		)
		So(err, ShouldBeNil)
		So(tr.Phase(), ShouldEqual, IDLE)

		summary, err := tr.Train(context.Background())
		So(err, ShouldBeNil)

		Convey("Every episode is played to its end", func() {
			So(summary.Reason, ShouldEqual, BUDGET_EXHAUSTED)
			So(summary.Episodes, ShouldEqual, 10)
			So(env.resets, ShouldEqual, 10)
			So(env.steps, ShouldEqual, 30)
			So(env.closes, ShouldEqual, 1)
			So(tr.Phase(), ShouldEqual, TERMINATED)
		})

		Convey("Interval totals include the partial last interval", func() {
			So(summary.IntervalTotals, ShouldResemble, []int{4, 4, 2})
			So(sink.scores, ShouldResemble, [][]int{{4, 4, 2}})
			So(len(progress), ShouldEqual, 3)
			So(progress[0].Episodes, ShouldEqual, 4)
			So(progress[0].IntervalAverage, ShouldEqual, 1)
			So(progress[2].IntervalTotals, ShouldResemble, []int{4, 4, 2})
		})

		Convey("Snapshots are taken on the checkpoint interval and at termination", func() {
			So(len(sink.snapshots), ShouldEqual, 3)
			final := sink.snapshots[2]
			So(len(final), ShouldEqual, tr.State().Store.Size())
			So(summary.ExploredStates, ShouldEqual, tr.State().Store.Size())
		})

		Convey("The metrics reflect the run", func() {
			p := tr.Metrics().Progress()
			So(p.Episodes, ShouldEqual, 10)
			So(p.MaxScore, ShouldEqual, 1)
			So(p.MaxScoreEpisode, ShouldEqual, 0)
			So(p.LastScore, ShouldEqual, 1)
			So(p.Phase, ShouldEqual, TERMINATED)
			So(summary.MaxScore, ShouldEqual, 1)
			So(summary.MaxScoreEpisode, ShouldEqual, 0)
		})

		Convey("The terminal penalty was learned", func() {
			vals := tr.State().Store.GetOrInit("80_150")
			So(floatsMin(vals), ShouldBeLessThan, 0)
		})
	})

	Convey("When a single episode is played", t, func() {
		Convey("Rewards are backed up from the terminal step", func() {
			tr, err := NewTrainer(&scriptedEnv{}, keyOf, testConfig(1), WithLogger(quietLogger()))
			So(err, ShouldBeNil)
			_, err = tr.Train(context.Background())
			So(err, ShouldBeNil)

			// Every estimate ties in the first episode, so IDLE is always chosen.
			// Terminal: 150 from the gap after two recorded steps, -1500 - 1000; 0.8 * -2500.
			store := tr.State().Store
			So(store.GetOrInit("80_150"), ShouldResemble, []float64{-2000, 0})
			// Passing the pipe: 0.8 * (10 + 0.8 * max(-2000, 0)).
			So(store.GetOrInit("90_150")[models.IDLE], ShouldAlmostEqual, 8)
			So(store.GetOrInit("100_0")[models.IDLE], ShouldAlmostEqual, 5.12)
		})

		Convey("A death far above the gap is penalized by its distance", func() {
			tr, err := NewTrainer(&scriptedEnv{dy: -150}, keyOf, testConfig(1), WithLogger(quietLogger()))
			So(err, ShouldBeNil)
			_, err = tr.Train(context.Background())
			So(err, ShouldBeNil)
			So(tr.State().Store.GetOrInit("80_-150"), ShouldResemble, []float64{-2000, 0})
		})
	})

	Convey("When an episode's score runs away", t, func() {
		env := &runawayEnv{}
		sink := &recordingSink{}
		tr, err := NewTrainer(env, keyOf, testConfig(10),
			WithSnapshotSink(sink),
			WithScoreSink(sink),
			WithLogger(quietLogger()),
		)
		So(err, ShouldBeNil)
		summary, err := tr.Train(context.Background())
		So(err, ShouldBeNil)

		Convey("Training stops without calling the environment again", func() {
			So(summary.Reason, ShouldEqual, RUNAWAY_ABORT)
			So(summary.Episodes, ShouldEqual, 0)
			So(env.steps, ShouldEqual, 1)
			So(env.resets, ShouldEqual, 1)
			So(env.closes, ShouldEqual, 0)
			So(tr.Phase(), ShouldEqual, TERMINATED)
		})

		Convey("The aborted trajectory is not learned from", func() {
			for _, vals := range tr.State().Store.Snapshot() {
				So(vals, ShouldResemble, []float64{0, 0})
			}
		})

		Convey("Final artifacts are still emitted", func() {
			So(summary.MaxScore, ShouldEqual, models.RUNAWAY_SCORE+1)
			So(len(sink.snapshots), ShouldEqual, 1)
			So(len(sink.scores), ShouldEqual, 1)
		})
	})

	Convey("When the environment fails", t, func() {
		env := &scriptedEnv{failAfter: 5}
		tr, err := NewTrainer(env, keyOf, testConfig(10), WithLogger(quietLogger()))
		So(err, ShouldBeNil)
		_, err = tr.Train(context.Background())

		Convey("The error is returned and the environment closed", func() {
			So(errors.Is(err, errBoom), ShouldBeTrue)
			So(env.closes, ShouldEqual, 1)
			So(tr.Phase(), ShouldEqual, TERMINATED)
		})
	})

	Convey("When a sink fails", t, func() {
		env := &scriptedEnv{}
		sink := &recordingSink{err: errBoom}
		tr, _ := NewTrainer(env, keyOf, testConfig(6),
			WithSnapshotSink(sink),
			WithLogger(quietLogger()),
		)
		summary, err := tr.Train(context.Background())

		Convey("Training continues", func() {
			So(err, ShouldBeNil)
			So(summary.Episodes, ShouldEqual, 6)
		})
	})

	Convey("When the context is already done", t, func() {
		env := &scriptedEnv{}
		sink := &recordingSink{}
		tr, _ := NewTrainer(env, keyOf, testConfig(10),
			WithSnapshotSink(sink),
			WithLogger(quietLogger()),
		)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		summary, err := tr.Train(ctx)

		So(err, ShouldBeNil)
		So(summary.Reason, ShouldEqual, DEADLINE)
		So(summary.Episodes, ShouldEqual, 0)
		So(env.steps, ShouldEqual, 0)
		So(len(sink.snapshots), ShouldEqual, 1)
	})

	Convey("When training resumes from restored estimates", t, func() {
		restored := RestoredLearnerState(map[models.StateKey][]float64{"100_0": {-5, 7}})
		tr, _ := NewTrainer(&scriptedEnv{}, keyOf, testConfig(0),
			WithLearnerState(restored),
			WithLogger(quietLogger()),
		)
		summary, err := tr.Train(context.Background())
		So(err, ShouldBeNil)
		So(summary.ExploredStates, ShouldEqual, 1)
		So(tr.State().Store.GetOrInit("100_0"), ShouldResemble, []float64{-5, 7})
	})
}

func TestTrainerLearnsFlappy(t *testing.T) {
	if testing.Short() {
		t.Skip("long training run")
	}

	Convey("When the learner plays the game for a while", t, func() {
		cfg := DefaultConfig()
		cfg.MaxEpisodes = 2000
		cfg.EvalInterval = 500
		cfg.CheckpointInterval = 2000

		tr, err := NewTrainer(flappy_world.NewGame(1), flappy_world.Discretize, cfg,
			WithLogger(quietLogger()))
		So(err, ShouldBeNil)
		summary, err := tr.Train(context.Background())
		So(err, ShouldBeNil)

		Convey("Later intervals score more than the first", func() {
			So(summary.Reason, ShouldEqual, BUDGET_EXHAUSTED)
			So(len(summary.IntervalTotals), ShouldEqual, 4)
			So(summary.IntervalTotals[3], ShouldBeGreaterThan, summary.IntervalTotals[0])
			So(summary.ExploredStates, ShouldBeGreaterThan, 10)
		})
	})
}

func floatsMin(vals []float64) float64 {
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
