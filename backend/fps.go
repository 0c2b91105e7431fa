package backend

import "time"

const fpsWindow = 2 * time.Second

// Rolling frame-rate counter over a fixed time window
type FpsCounter struct {
	ticks []time.Time
	// Injectable clock for tests
	now func() time.Time
}

func (f *FpsCounter) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

// Records one presented frame
func (f *FpsCounter) Tick() {
	now := f.clock()
	f.ticks = append(f.ticks, now)
	f.trim(now)
}

func (f *FpsCounter) trim(now time.Time) {
	cutoff := now.Add(-fpsWindow)
	trimmed := 0
	for trimmed < len(f.ticks) && f.ticks[trimmed].Before(cutoff) {
		trimmed++
	}
	f.ticks = f.ticks[trimmed:]
}

// Average frames per second over the window
func (f *FpsCounter) Avg() float64 {
	f.trim(f.clock())
	if len(f.ticks) < 2 {
		return 0
	}
	span := f.ticks[len(f.ticks)-1].Sub(f.ticks[0])
	if span <= 0 {
		return 0
	}
	return float64(len(f.ticks)-1) / span.Seconds()
}
