package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope of every config file: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes the tunable run parameters outside of code.
// Keys are snake_case because viper folds all keys to lower case before the def block is
// re-decoded.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyper_params"`
	// MaxEpisodes is the episode budget.
	MaxEpisodes int `yaml:"max_episodes"`
	// CheckpointInterval is the number of episodes between snapshot dumps.
	CheckpointInterval int `yaml:"checkpoint_interval"`
	// EvalInterval is the number of episodes between progress reports.
	EvalInterval int `yaml:"eval_interval"`
	// Seed seeds the simulated environment.
	Seed int64 `yaml:"seed"`
	// TrainingDeadline is a fixed duration describing when to terminate training.
	TrainingDeadline map[string]string `yaml:"training_deadline"`
	// Checkpoint selects and configures the persistence sinks.
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// CheckpointConfig describes where snapshots and score totals go.
type CheckpointConfig struct {
	// Sink is one of "file", "sqlite" or "redis".
	Sink string `yaml:"sink"`
	// Path is the snapshot file or sqlite database.
	Path string `yaml:"path"`
	// Addr is the redis address.
	Addr string `yaml:"addr"`
	// ScoresPath receives the per-interval score totals.
	ScoresPath string `yaml:"scores_path"`
	// ChartPath, if set, receives an html line chart of the score totals.
	ChartPath string `yaml:"chart_path"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// Hyper parameter names and their defaults.
const (
	LEARNING_RATE = "learning_rate"
	DISCOUNT      = "discount"
	UCB_WEIGHT    = "ucb_weight"

	defaultLearningRate = 0.8
	defaultDiscount     = 0.8
	defaultUCBWeight    = 0.8
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid training config")

// DefaultConfig returns the parameters of a full-length run.
func DefaultConfig() *TrainingConfig {
	return &TrainingConfig{
		HyperParams: []HyperParameter{
			{Key: LEARNING_RATE, Val: defaultLearningRate},
			{Key: DISCOUNT, Val: defaultDiscount},
			{Key: UCB_WEIGHT, Val: defaultUCBWeight},
		},
		MaxEpisodes:        400000,
		CheckpointInterval: 10000,
		EvalInterval:       10000,
		Seed:               1,
		TrainingDeadline:   map[string]string{},
		Checkpoint: CheckpointConfig{
			Sink:       "file",
			Path:       "./records/q_ucb.json",
			ScoresPath: "./records/interval_scores.json",
		},
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

func (cfg *TrainingConfig) LearningRate() float64 {
	return cfg.GetHyperParamOrDefault(LEARNING_RATE, defaultLearningRate)
}

func (cfg *TrainingConfig) Discount() float64 {
	return cfg.GetHyperParamOrDefault(DISCOUNT, defaultDiscount)
}

func (cfg *TrainingConfig) UCBWeight() float64 {
	return cfg.GetHyperParamOrDefault(UCB_WEIGHT, defaultUCBWeight)
}

// Validate rejects configs the trainer cannot run.
func (cfg *TrainingConfig) Validate() error {
	switch {
	case cfg.MaxEpisodes < 0:
		return fmt.Errorf("%w: max_episodes %d", ErrInvalidConfig, cfg.MaxEpisodes)
	case cfg.CheckpointInterval <= 0:
		return fmt.Errorf("%w: checkpoint_interval %d", ErrInvalidConfig, cfg.CheckpointInterval)
	case cfg.EvalInterval <= 0:
		return fmt.Errorf("%w: eval_interval %d", ErrInvalidConfig, cfg.EvalInterval)
	case cfg.LearningRate() < 0 || cfg.LearningRate() > 1:
		return fmt.Errorf("%w: learning_rate %v", ErrInvalidConfig, cfg.LearningRate())
	case cfg.Discount() < 0 || cfg.Discount() > 1:
		return fmt.Errorf("%w: discount %v", ErrInvalidConfig, cfg.Discount())
	}
	return nil
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a config file whose def block is a TrainingConfig. Fields the file omits keep
// the values of DefaultConfig.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultConfig()
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, innerConfig.Validate()
}
