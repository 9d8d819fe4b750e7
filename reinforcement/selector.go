package reinforcement

import (
	"math"

	"flappyq/models"

	"gonum.org/v1/gonum/floats"
)

// UCBSelector adds an upper-confidence bonus to each estimate and takes the argmax:
//
//	score(a) = Q(s,a) + Weight * sqrt(ln(max(episode,1)) / max(1, Na[a]))
//
// Na is the global per-action count, not a per state-action count.
type UCBSelector struct {
	// Weight is the exploration weight c.
	Weight float64
}

// Scores returns the UCB score of each action. It materializes state in the store.
func (sel UCBSelector) Scores(ls *LearnerState, state models.StateKey, episode int) []float64 {
	q := ls.Store.GetOrInit(state)
	elapsed := math.Log(math.Max(float64(episode), 1))
	scores := make([]float64, len(models.Actions))
	for i, action := range models.Actions {
		tried := math.Max(1, float64(ls.ActionVisits[action]))
		scores[i] = q[action] + sel.Weight*math.Sqrt(elapsed/tried)
	}
	return scores
}

// Select picks the highest scoring action, the lowest index on ties, and counts the visit
// to state and the choice of action.
func (sel UCBSelector) Select(ls *LearnerState, state models.StateKey, episode int) models.Action {
	ls.StateVisits[state]++
	action := models.Actions[floats.MaxIdx(sel.Scores(ls, state, episode))]
	ls.ActionVisits[action]++
	return action
}
