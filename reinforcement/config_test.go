package reinforcement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const configYaml = `kind: training
def:
  max_episodes: 50
  eval_interval: 10
  checkpoint_interval: 25
  seed: 9
  hyper_params:
    - key: learning_rate
      val: 0.5
    - key: ucb_weight
      val: 2
  training_deadline:
    duration: 1m
  checkpoint:
    sink: sqlite
    path: ./q.db
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When a config file is read", t, func() {
		cfg, err := FromYaml(writeConfig(t, configYaml))
		So(err, ShouldBeNil)

		Convey("Specified fields are decoded", func() {
			So(cfg.MaxEpisodes, ShouldEqual, 50)
			So(cfg.EvalInterval, ShouldEqual, 10)
			So(cfg.CheckpointInterval, ShouldEqual, 25)
			So(cfg.Seed, ShouldEqual, 9)
			So(cfg.LearningRate(), ShouldEqual, 0.5)
			So(cfg.UCBWeight(), ShouldEqual, 2.0)
			So(cfg.Checkpoint.Sink, ShouldEqual, "sqlite")
			So(cfg.Checkpoint.Path, ShouldEqual, "./q.db")
		})

		Convey("Omitted fields keep their defaults", func() {
			So(cfg.Discount(), ShouldEqual, defaultDiscount)
			So(cfg.Checkpoint.ScoresPath, ShouldEqual, DefaultConfig().Checkpoint.ScoresPath)
		})

		Convey("The deadline is applied to the context", func() {
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(time.Until(deadline), ShouldBeLessThanOrEqualTo, time.Minute)
		})
	})

	Convey("When the file does not exist", t, func() {
		_, err := FromYaml(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("When an interval is zero", t, func() {
		_, err := FromYaml(writeConfig(t, "kind: training\ndef:\n  eval_interval: 0\n"))
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
	})
}

func TestTrainingConfig(t *testing.T) {
	Convey("When hyper parameters are missing", t, func() {
		cfg := &TrainingConfig{}
		So(cfg.GetHyperParamOrDefault("nope", 3.5), ShouldEqual, 3.5)
		So(cfg.LearningRate(), ShouldEqual, defaultLearningRate)
	})

	Convey("When no deadline is configured", t, func() {
		cfg := DefaultConfig()
		ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()
		_, ok := ctx.Deadline()
		So(ok, ShouldBeFalse)
	})

	Convey("When the deadline is malformed", t, func() {
		cfg := DefaultConfig()
		cfg.TrainingDeadline["duration"] = "soon"
		_, _, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldNotBeNil)
	})

	Convey("The default config is valid", t, func() {
		So(DefaultConfig().Validate(), ShouldBeNil)
	})

	Convey("A learning rate above one is rejected", t, func() {
		cfg := DefaultConfig()
		cfg.HyperParams = []HyperParameter{{Key: LEARNING_RATE, Val: 1.5}}
		So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
	})
}
