package flappy_world

import (
	"errors"
	"fmt"
	"math/rand"

	"flappyq/models"
)

// Pixel geometry and kinematics of the game. Positions are screen coordinates: y grows
// downward, the bird's x never changes and pipes scroll left at a fixed velocity.
const (
	SCREEN_WIDTH  = 288
	SCREEN_HEIGHT = 512
	BASE_Y        = 400 // top of the ground

	BIRD_X       = 57
	BIRD_WIDTH   = 34
	BIRD_HEIGHT  = 24
	BIRD_START_Y = 200

	PIPE_WIDTH    = 52
	PIPE_GAP      = 100
	PIPE_VELOCITY = 4
	PIPE_SPACING  = SCREEN_WIDTH/2 + PIPE_WIDTH/2 + 80

	FLAP_VELOCITY     = -9
	MAX_FALL_VELOCITY = 10

	// GRID_SIZE is the discretizer's bucket width in pixels.
	GRID_SIZE = 10

	// Raw per-frame reward for staying alive; the learner reshapes this anyway.
	ALIVE_REWARD = 1
)

var (
	// ErrGameOver is returned when Step is called after the bird crashed and before a Reset.
	ErrGameOver = errors.New("game over: reset required")
	// ErrInvalidAction is returned for actions outside the action set.
	ErrInvalidAction = errors.New("invalid action")
	// ErrClosed is returned for any call after Close.
	ErrClosed = errors.New("game closed")
)

type pipe struct {
	x    int // left edge
	gapY int // top of the gap
}

// Game is a deterministic side-scroller: the same seed always yields the same pipe layout.
// It is not safe for concurrent use.
type Game struct {
	rng    *rand.Rand
	birdY  int
	velY   int
	score  int
	pipes  []pipe
	over   bool
	closed bool
}

// NewGame returns a game whose pipe gaps are drawn from a generator seeded with seed.
func NewGame(seed int64) *Game {
	return &Game{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Gap tops are uniform over the middle 60% of the playfield.
func (g *Game) randGapY() int {
	return g.rng.Intn(int(BASE_Y*0.6-PIPE_GAP)+1) + int(BASE_Y*0.2)
}

// Reset starts a new episode and returns the initial observation.
func (g *Game) Reset() (models.Observation, error) {
	if g.closed {
		return models.Observation{}, ErrClosed
	}
	g.birdY = BIRD_START_Y
	g.velY = FLAP_VELOCITY
	g.score = 0
	g.over = false
	first := pipe{x: SCREEN_WIDTH + 10, gapY: g.randGapY()}
	second := pipe{x: first.x + PIPE_SPACING, gapY: g.randGapY()}
	g.pipes = []pipe{first, second}
	return g.observe(), nil
}

// Step advances the game by one frame.
func (g *Game) Step(action models.Action) (
	obs models.Observation,
	reward float64,
	done bool,
	info models.Info,
	err error,
) {
	if g.closed {
		err = ErrClosed
		return
	}
	if g.over {
		err = ErrGameOver
		return
	}

	switch action {
	case models.FLAP:
		g.velY = FLAP_VELOCITY
	case models.IDLE:
		if g.velY < MAX_FALL_VELOCITY {
			g.velY++
		}
	default:
		err = fmt.Errorf("%w: %d", ErrInvalidAction, int(action))
		return
	}
	g.birdY += g.velY

	// A pipe is passed on the frame its centre crosses the bird's centre.
	birdMid := BIRD_X + BIRD_WIDTH/2
	for i := range g.pipes {
		prevMid := g.pipes[i].x + PIPE_WIDTH/2
		g.pipes[i].x -= PIPE_VELOCITY
		if prevMid >= birdMid && birdMid > g.pipes[i].x+PIPE_WIDTH/2 {
			g.score++
		}
	}

	// Recycle the leading pipe once it has fully left the screen.
	if g.pipes[0].x+PIPE_WIDTH < 0 {
		last := g.pipes[len(g.pipes)-1]
		g.pipes = append(g.pipes[1:], pipe{x: last.x + PIPE_SPACING, gapY: g.randGapY()})
	}

	g.over = g.crashed()
	return g.observe(), ALIVE_REWARD, g.over, models.Info{Score: g.score}, nil
}

// Close releases the game; further calls fail.
func (g *Game) Close() error {
	g.closed = true
	return nil
}

// Score returns the pipes passed in the current episode.
func (g *Game) Score() int {
	return g.score
}

func (g *Game) crashed() bool {
	if g.birdY+BIRD_HEIGHT >= BASE_Y || g.birdY < 0 {
		return true
	}
	for _, p := range g.pipes {
		overlaps := p.x < BIRD_X+BIRD_WIDTH && BIRD_X < p.x+PIPE_WIDTH
		if overlaps && (g.birdY < p.gapY || g.birdY+BIRD_HEIGHT > p.gapY+PIPE_GAP) {
			return true
		}
	}
	return false
}

// The next pipe is the first whose trailing edge the bird has not yet cleared.
func (g *Game) nextPipe() pipe {
	for _, p := range g.pipes {
		if p.x+PIPE_WIDTH >= BIRD_X {
			return p
		}
	}
	return g.pipes[len(g.pipes)-1]
}

func (g *Game) observe() models.Observation {
	p := g.nextPipe()
	return models.Observation{
		Dx:   p.x + PIPE_WIDTH - BIRD_X,
		Dy:   g.birdY + BIRD_HEIGHT/2 - (p.gapY + PIPE_GAP/2),
		VelY: g.velY,
	}
}

// Discretize maps an observation onto the GRID_SIZE lattice. Distances are floored, not
// truncated, so that -5 and 5 land in different buckets.
func Discretize(obs models.Observation) models.StateKey {
	return models.NewStateKey(floorTo(obs.Dx, GRID_SIZE), floorTo(obs.Dy, GRID_SIZE))
}

func floorTo(v, grid int) int {
	q := v / grid
	if v%grid != 0 && v < 0 {
		q--
	}
	return q * grid
}
