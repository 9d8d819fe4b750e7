package reinforcement

import (
	"fmt"

	"flappyq/models"
)

// Shape converts the raw step signals into the learning reward. Exactly one rule fires:
// a terminal step is always scored by how far from the gap the bird died, in either direction, otherwise passing a
// pipe earns PASS_REWARD and anything else earns nothing. trajLen is the number of transitions
// recorded before this one. prevScore advances whenever the score increased, terminal or not.
func Shape(
	prevScore, score int,
	done bool,
	next models.StateKey,
	trajLen int,
) (reward float64, newPrevScore int, err error) {
	newPrevScore = prevScore
	if score > prevScore {
		newPrevScore = score
		reward = models.PASS_REWARD
	}
	if !done {
		return
	}

	var dist int
	if dist, err = next.Distance(); err != nil {
		return 0, prevScore, fmt.Errorf("terminal reward: %w", err)
	}
	// The key carries a signed offset; above and below the gap are equally far.
	if dist < 0 {
		dist = -dist
	}
	if dist > models.HIGH_CLEARANCE_DISTANCE {
		reward = float64(models.DISTANCE_PENALTY * dist)
		// Dying far from the gap within the first few frames is the worst outcome.
		if trajLen < models.EARLY_DEATH_STEPS {
			reward += models.EARLY_DEATH_PENALTY
		}
		return
	}
	reward = models.CLEAN_DEATH_REWARD
	return
}
