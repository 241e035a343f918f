package history

import (
	"iter"

	"github.com/chewxy/math32"
)

// DefaultCapacity matches the width of a 128 column display.
const DefaultCapacity = 128

// Buffer is a fixed capacity ring of temperature samples. Slots that were
// never written, or that recorded a sensor fault, hold no value.
//
// Buffer is not safe for concurrent use; it belongs to the control loop.
type Buffer struct {
	samples []float32
	next    int // slot the next Push writes to
}

// New creates an empty buffer. Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	b := &Buffer{samples: make([]float32, capacity)}
	b.Reset()
	return b
}

// Cap returns the number of slots.
func (b *Buffer) Cap() int { return len(b.samples) }

// Push records a sample, overwriting the oldest slot. NaN is stored as a gap.
func (b *Buffer) Push(v float32) {
	b.samples[b.next] = v
	b.next = (b.next + 1) % len(b.samples)
}

// PushGap records a slot with no sample.
func (b *Buffer) PushGap() {
	b.Push(math32.NaN())
}

// Reset marks every slot empty and rewinds the cursor.
func (b *Buffer) Reset() {
	for i := range b.samples {
		b.samples[i] = math32.NaN()
	}
	b.next = 0
}

// Latest returns the most recently pushed slot.
func (b *Buffer) Latest() (float32, bool) {
	i := (b.next - 1 + len(b.samples)) % len(b.samples)
	v := b.samples[i]
	return v, !math32.IsNaN(v)
}

// All yields every slot from oldest to newest together with its validity.
// The index is the chronological position, 0 being the oldest slot.
func (b *Buffer) All() iter.Seq2[int, Sample] {
	return func(yield func(int, Sample) bool) {
		n := len(b.samples)
		for i := 0; i < n; i++ {
			v := b.samples[(b.next+i)%n]
			if !yield(i, Sample{Value: v, Valid: !math32.IsNaN(v)}) {
				return
			}
		}
	}
}

// Valid returns the number of slots holding a sample.
func (b *Buffer) Valid() int {
	n := 0
	for _, v := range b.samples {
		if !math32.IsNaN(v) {
			n++
		}
	}
	return n
}

// Sample is one history slot.
type Sample struct {
	Value float32
	Valid bool
}
