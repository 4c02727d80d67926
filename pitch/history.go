package pitch

// PitchSample is one smoothed, time-stamped point in a session's history.
// Samples are immutable once appended.
type PitchSample struct {
	FrequencyHz float64 `json:"frequency"`
	TimeSeconds float64 `json:"time"`
	Amplitude   float64 `json:"amplitude"`
	Confidence  float64 `json:"confidence"`
}

// PitchHistory is a bounded ring of recent pitch samples, owned exclusively
// by one analysis session. The oldest sample is evicted first when full.
type PitchHistory struct {
	samples  []PitchSample
	head     int
	count    int
	capacity int
}

// NewPitchHistory creates a ring with the given capacity.
func NewPitchHistory(capacity int) *PitchHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &PitchHistory{
		samples:  make([]PitchSample, capacity),
		capacity: capacity,
	}
}

// Append stores a sample, evicting the oldest when the ring is full.
func (h *PitchHistory) Append(sample PitchSample) {
	h.samples[(h.head+h.count)%h.capacity] = sample
	if h.count < h.capacity {
		h.count++
	} else {
		h.head = (h.head + 1) % h.capacity
	}
}

// Len returns the number of stored samples.
func (h *PitchHistory) Len() int {
	return h.count
}

// Recent returns up to n most recent samples in chronological order.
func (h *PitchHistory) Recent(n int) []PitchSample {
	if n > h.count {
		n = h.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]PitchSample, n)
	start := h.head + h.count - n
	for i := 0; i < n; i++ {
		out[i] = h.samples[(start+i)%h.capacity]
	}
	return out
}

// Clear drops all samples.
func (h *PitchHistory) Clear() {
	h.head = 0
	h.count = 0
}
