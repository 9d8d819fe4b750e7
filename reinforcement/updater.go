package reinforcement

import "flappyq/models"

// ApplyBackward runs the Q-learning update over a finished episode from the terminal
// transition back to the first:
//
//	Q(s,a) <- (1-lr)*Q(s,a) + lr*(r + discount*max_a' Q(s',a'))
//
// Going backward carries the terminal reward to earlier states in a single pass. A successor
// visited earlier in the same episode is read before its own update in this pass.
func ApplyBackward(store *ActionValueStore, traj models.Trajectory, lr, discount float64) {
	for _, t := range models.Rev(len(traj)) {
		step := traj[t]
		target := step.Reward + discount*store.Max(step.Successor)
		old := store.GetOrInit(step.State)[step.Action]
		store.Update(step.State, step.Action, (1-lr)*old+lr*target)
	}
}
