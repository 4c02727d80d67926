package pitch

import (
	"testing"
	"time"
)

func TestSampleBufferWindowRequiresEnoughAudio(t *testing.T) {
	t.Parallel()

	buffer := NewSampleBuffer(44100, 0.4)
	buffer.Append(make([]float64, 1000), time.Now())

	if _, ok := buffer.Window(4096); ok {
		t.Fatal("got a window from 1000 buffered samples, want ok=false")
	}

	buffer.Append(make([]float64, 4000), time.Now())
	if _, ok := buffer.Window(4096); !ok {
		t.Fatal("no window from 5000 buffered samples")
	}
}

func TestSampleBufferWindowIsMostRecent(t *testing.T) {
	t.Parallel()

	buffer := NewSampleBuffer(8000, 1)
	buffer.Append(rampSamples(0, 8000), time.Now())

	window, ok := buffer.Window(100)
	if !ok {
		t.Fatal("no window available")
	}
	if got := window.Samples[0]; got != float64(7900) {
		t.Errorf("window starts at sample value %v, want 7900 (the newest 100 samples)", got)
	}
	if got := window.Samples[99]; got != float64(7999) {
		t.Errorf("window ends at sample value %v, want 7999", got)
	}
}

func TestSampleBufferSkipsStaleAudio(t *testing.T) {
	t.Parallel()

	buffer := NewSampleBuffer(8000, 1)
	buffer.Append(make([]float64, 5000), time.Now())

	if _, ok := buffer.Window(4096); !ok {
		t.Fatal("no window on first emission")
	}
	// No fresh audio between ticks: re-analyzing the same region tells the
	// caller nothing new.
	if _, ok := buffer.Window(4096); ok {
		t.Fatal("got a second window without fresh audio, want ok=false")
	}

	buffer.Append(make([]float64, 100), time.Now())
	if _, ok := buffer.Window(4096); !ok {
		t.Fatal("no window after fresh audio arrived")
	}
}

func TestSampleBufferDropsOldestBeyondCap(t *testing.T) {
	t.Parallel()

	// 0.5 s at 8 kHz retains 4000 samples.
	buffer := NewSampleBuffer(8000, 0.5)
	buffer.Append(rampSamples(0, 3000), time.Now())
	buffer.Append(rampSamples(3000, 3000), time.Now())

	if buffer.Len() != 4000 {
		t.Fatalf("buffered %d samples, want 4000", buffer.Len())
	}
	window, ok := buffer.Window(4000)
	if !ok {
		t.Fatal("no window available")
	}
	if got := window.Samples[0]; got != float64(2000) {
		t.Errorf("oldest retained sample is %v, want 2000 (first 2000 dropped)", got)
	}
}

func TestSampleBufferWindowIsACopy(t *testing.T) {
	t.Parallel()

	buffer := NewSampleBuffer(8000, 1)
	buffer.Append(rampSamples(0, 5000), time.Now())

	window, ok := buffer.Window(4096)
	if !ok {
		t.Fatal("no window available")
	}
	first := window.Samples[0]

	buffer.Append(rampSamples(5000, 4000), time.Now())
	if window.Samples[0] != first {
		t.Error("window mutated by a later append; windows must be copies")
	}
}

func TestSampleBufferCapturedAtTracksLatestAppend(t *testing.T) {
	t.Parallel()

	buffer := NewSampleBuffer(8000, 1)
	early := time.Now().Add(-time.Second)
	late := time.Now()
	buffer.Append(make([]float64, 3000), early)
	buffer.Append(make([]float64, 3000), late)

	window, ok := buffer.Window(4096)
	if !ok {
		t.Fatal("no window available")
	}
	if !window.CapturedAt.Equal(late) {
		t.Errorf("window captured at %v, want %v", window.CapturedAt, late)
	}
}

func TestNewSampleBufferRejectsInvalidRate(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for sample rate 0")
		}
	}()
	NewSampleBuffer(0, 0.4)
}

func rampSamples(start, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(start + i)
	}
	return samples
}
