package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StateKey is the discretized identity of an observation. The core treats it as an atomic
// identifier, except for the reward shaper which parses the gap distance back out of it.
// Keys are underscore-delimited fields; the second field is the signed vertical distance,
// in pixels, from the bird to the centre of the next gap.
type StateKey string

// ErrMalformedKey is returned when a key does not carry a parseable distance field.
var ErrMalformedKey = errors.New("malformed state key")

// NewStateKey builds the canonical key for a horizontal and vertical distance to the next gap.
func NewStateKey(dx, dy int) StateKey {
	return StateKey(strconv.Itoa(dx) + "_" + strconv.Itoa(dy))
}

// Distance returns the distance-to-obstacle field of the key.
func (key StateKey) Distance() (int, error) {
	fields := strings.Split(string(key), "_")
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, string(key))
	}
	dist, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedKey, string(key), err)
	}
	return dist, nil
}

// Action is one of the two things the bird can do on a frame.
type Action int

const (
	IDLE Action = iota
	FLAP
)

// NUM_ACTIONS is the length of every action-value vector.
const NUM_ACTIONS = 2

// Actions lists the action set in index order; selection ties resolve to the earliest entry.
var Actions = []Action{IDLE, FLAP}

func (a Action) String() string {
	switch a {
	case IDLE:
		return "idle"
	case FLAP:
		return "flap"
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}

// Observation is the raw view of the game the environment hands back on reset and step.
// Dx is the horizontal distance from the bird to the trailing edge of the next pipe, Dy the
// vertical offset of the bird's centre from the gap centre (positive is below), VelY the
// bird's vertical velocity.
type Observation struct {
	Dx, Dy, VelY int
}

// Info carries the auxiliary step data; Score is the number of pipes passed this episode.
type Info struct {
	Score int
}

// Transition is a single time step of the agent: do action a in
// state s, observe reward r and successor s'.
type Transition struct {
	State     StateKey
	Successor StateKey
	Action    Action
	Reward    float64
}

// Trajectory is the ordered sequence of Transitions of one episode.
type Trajectory []Transition

// Rewards and thresholds of the shaping policy.
const (
	PASS_REWARD             = 10
	CLEAN_DEATH_REWARD      = -500
	DISTANCE_PENALTY        = -10
	EARLY_DEATH_PENALTY     = -1000
	HIGH_CLEARANCE_DISTANCE = 120
	EARLY_DEATH_STEPS       = 3
	// RUNAWAY_SCORE is the single-episode score beyond which training is considered solved.
	RUNAWAY_SCORE = 100000
)

// Returns reversed indices of a slice, e.g. for ranging over.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
