package reinforcement

import (
	"flappyq/models"

	"gonum.org/v1/gonum/floats"
)

// ActionValueStore maps each visited state to its vector of action-value estimates.
// Reads are not pure: GetOrInit materializes unseen states with zeroed estimates, which is
// what Size reports as the explored state space. Not safe for concurrent use.
type ActionValueStore struct {
	values map[models.StateKey][]float64
}

func NewActionValueStore() *ActionValueStore {
	return &ActionValueStore{
		values: map[models.StateKey][]float64{},
	}
}

// GetOrInit returns the estimates for state, inserting a zero vector on first touch.
// The returned slice aliases the store.
func (store *ActionValueStore) GetOrInit(state models.StateKey) []float64 {
	vals, ok := store.values[state]
	if !ok {
		vals = make([]float64, models.NUM_ACTIONS)
		store.values[state] = vals
	}
	return vals
}

// Update overwrites the estimate of a single state-action pair.
func (store *ActionValueStore) Update(state models.StateKey, action models.Action, value float64) {
	store.GetOrInit(state)[action] = value
}

// Max returns the largest estimate for state. Like GetOrInit, it materializes unseen states.
func (store *ActionValueStore) Max(state models.StateKey) float64 {
	return floats.Max(store.GetOrInit(state))
}

// Size is the number of distinct states seen.
func (store *ActionValueStore) Size() int {
	return len(store.values)
}

// Snapshot returns a deep copy of the estimates, safe to hand to a sink.
func (store *ActionValueStore) Snapshot() map[models.StateKey][]float64 {
	snapshot := make(map[models.StateKey][]float64, len(store.values))
	for state, vals := range store.values {
		snapshot[state] = append([]float64(nil), vals...)
	}
	return snapshot
}

// Restore replaces the contents with previously snapshotted estimates. Vectors are copied
// into fresh NUM_ACTIONS-length slices, so short vectors are zero padded and long ones truncated.
func (store *ActionValueStore) Restore(values map[models.StateKey][]float64) {
	store.values = make(map[models.StateKey][]float64, len(values))
	for state, vals := range values {
		restored := make([]float64, models.NUM_ACTIONS)
		copy(restored, vals)
		store.values[state] = restored
	}
}
