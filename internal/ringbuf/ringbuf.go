// Package ringbuf provides a fixed-capacity buffer that evicts its oldest
// entries once full.
package ringbuf

// Buffer holds at most Cap() values in insertion order.
type Buffer[T any] struct {
	items []T
	start int
	size  int
}

// New creates a Buffer with the given capacity. Capacities below 1 are
// raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.items) {
		b.items[(b.start+b.size)%len(b.items)] = v
		b.size++
		return
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % len(b.items)
}

// Len returns the number of buffered values.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// At returns the i-th value, oldest first. It panics if i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ringbuf: index out of range")
	}
	return b.items[(b.start+i)%len(b.items)]
}

// Last returns up to n of the most recent values, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	offset := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.At(offset + i)
	}
	return out
}

// Slice returns a copy of all buffered values, oldest first.
func (b *Buffer[T]) Slice() []T {
	return b.Last(b.size)
}

// Reset empties the buffer without changing its capacity.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.start = 0
	b.size = 0
}
