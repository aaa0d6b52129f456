package utils

import (
	"hypersync/src/models"
)

// Per-row feature layout: timestamp millis, equity value.
const (
	rbNumFeatures = 2
	rbIdxTime     = 0
	rbIdxValue    = 1
)

// -----------------------------------------------------------------------------
// EquityRing is a fixed-size circular buffer of equity samples.
// True ring buffer - no resizing on append!
// -----------------------------------------------------------------------------

type EquityRing struct {
	data     [][rbNumFeatures]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewEquityRing creates a new buffer with fixed capacity
func NewEquityRing(capacity int) *EquityRing {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &EquityRing{
		data:     make([][rbNumFeatures]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds one sample, overwriting the oldest when full.
func (rb *EquityRing) Append(timestamp int64, value float64) {
	rb.data[rb.index] = [rbNumFeatures]float64{float64(timestamp), value}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n newest samples in insertion order.
func (rb *EquityRing) GetLatest(n int) []models.MEquityPoint {
	if rb.size == 0 || n <= 0 {
		return []models.MEquityPoint{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MEquityPoint, count)

	// Latest data is at index-1
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		row := rb.data[idx]
		result[i] = models.MEquityPoint{
			Timestamp: int64(row[rbIdxTime]),
			Value:     row[rbIdxValue],
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all samples in insertion order (oldest to newest)
func (rb *EquityRing) GetAll() []models.MEquityPoint {
	if rb.size == 0 {
		return []models.MEquityPoint{}
	}

	result := make([]models.MEquityPoint, rb.size)

	// Oldest element position depends on whether we have wrapped
	var startIdx int
	if rb.size == rb.capacity {
		startIdx = rb.index
	} else {
		startIdx = 0
	}

	for i := 0; i < rb.size; i++ {
		idx := (startIdx + i) % rb.capacity
		row := rb.data[idx]
		result[i] = models.MEquityPoint{
			Timestamp: int64(row[rbIdxTime]),
			Value:     row[rbIdxValue],
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *EquityRing) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *EquityRing) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *EquityRing) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *EquityRing) Clear() {
	rb.index = 0
	rb.size = 0
}
