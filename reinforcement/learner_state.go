package reinforcement

import "flappyq/models"

// LearnerState is everything a training run mutates: the estimates and both visit counters.
// It is owned by one Trainer and handed to each component call, never shared.
type LearnerState struct {
	Store *ActionValueStore
	// StateVisits counts selections made in each state.
	StateVisits map[models.StateKey]int
	// ActionVisits counts how often each action was chosen, across all states.
	ActionVisits []int
}

func NewLearnerState() *LearnerState {
	return &LearnerState{
		Store:        NewActionValueStore(),
		StateVisits:  map[models.StateKey]int{},
		ActionVisits: make([]int, models.NUM_ACTIONS),
	}
}

// RestoredLearnerState starts from checkpointed estimates with fresh counters, since
// counters are process-lifetime state and are never persisted.
func RestoredLearnerState(values map[models.StateKey][]float64) *LearnerState {
	ls := NewLearnerState()
	ls.Store.Restore(values)
	return ls
}
