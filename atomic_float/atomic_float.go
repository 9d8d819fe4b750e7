package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 shared between the training loop, which is the only writer,
// and dashboard readers. The bits live in an atomic.Uint64 so no unsafe pointer casts are needed.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead returns the current value.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// AtomicSet unconditionally stores a new value.
func (af *AtomicFloat64) AtomicSet(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// AtomicAdd attempts a single compare-and-swap of old+addend. If another writer changed the
// value in between, succeeded is false and the caller decides whether to retry.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// AtomicMax raises the value to val if val is larger, retrying until it wins or loses the race.
func (af *AtomicFloat64) AtomicMax(val float64) (raised bool) {
	for {
		old := af.bits.Load()
		if math.Float64frombits(old) >= val {
			return false
		}
		if af.bits.CompareAndSwap(old, math.Float64bits(val)) {
			return true
		}
	}
}
