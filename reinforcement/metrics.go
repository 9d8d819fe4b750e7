package reinforcement

import (
	"sync"

	"flappyq/atomic_float"
)

// Progress is an immutable view of a run, handed to ProgressFuncs and dashboards.
type Progress struct {
	Episodes        int
	ExploredStates  int
	LastScore       int
	MaxScore        int
	MaxScoreEpisode int
	IntervalAverage float64
	// IntervalTotals is the sum of episode scores per completed eval interval.
	IntervalTotals []int
	Phase          Phase
}

// Metrics are the live counters of a run. The trainer is the only writer; any goroutine may
// call Progress.
type Metrics struct {
	episodes        *atomic_float.AtomicFloat64
	explored        *atomic_float.AtomicFloat64
	lastScore       *atomic_float.AtomicFloat64
	maxScore        *atomic_float.AtomicFloat64
	maxScoreEpisode *atomic_float.AtomicFloat64
	intervalAverage *atomic_float.AtomicFloat64
	phase           *atomic_float.AtomicFloat64

	mu     sync.Mutex
	totals []int
}

func NewMetrics() *Metrics {
	return &Metrics{
		episodes:        atomic_float.NewAtomicFloat64(0),
		explored:        atomic_float.NewAtomicFloat64(0),
		lastScore:       atomic_float.NewAtomicFloat64(0),
		maxScore:        atomic_float.NewAtomicFloat64(0),
		maxScoreEpisode: atomic_float.NewAtomicFloat64(-1),
		intervalAverage: atomic_float.NewAtomicFloat64(0),
		phase:           atomic_float.NewAtomicFloat64(float64(IDLE)),
	}
}

func (m *Metrics) setPhase(phase Phase) {
	m.phase.AtomicSet(float64(phase))
}

func (m *Metrics) episodeDone(episodes, explored, score int) {
	m.episodes.AtomicSet(float64(episodes))
	m.explored.AtomicSet(float64(explored))
	m.lastScore.AtomicSet(float64(score))
}

// Scores are observed every step, so a new maximum is visible before its episode ends.
func (m *Metrics) observeScore(score, episode int) {
	if m.maxScore.AtomicMax(float64(score)) {
		m.maxScoreEpisode.AtomicSet(float64(episode))
	}
}

func (m *Metrics) intervalDone(total, episodes int) {
	m.intervalAverage.AtomicSet(float64(total) / float64(episodes))
	m.mu.Lock()
	m.totals = append(m.totals, total)
	m.mu.Unlock()
}

// Progress returns a consistent-enough snapshot of the counters.
func (m *Metrics) Progress() Progress {
	m.mu.Lock()
	totals := append([]int(nil), m.totals...)
	m.mu.Unlock()

	return Progress{
		Episodes:        int(m.episodes.AtomicRead()),
		ExploredStates:  int(m.explored.AtomicRead()),
		LastScore:       int(m.lastScore.AtomicRead()),
		MaxScore:        int(m.maxScore.AtomicRead()),
		MaxScoreEpisode: int(m.maxScoreEpisode.AtomicRead()),
		IntervalAverage: m.intervalAverage.AtomicRead(),
		IntervalTotals:  totals,
		Phase:           Phase(m.phase.AtomicRead()),
	}
}
