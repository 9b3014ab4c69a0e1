package ui

import (
	"slices"
	"sync"
	"time"
)

// speedInterval is how often throughput is sampled.
const speedInterval = 500 * time.Millisecond

// ProgressTracker holds the live state shown by the TUI. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	item       string
	start      time.Time
	stageStart time.Time
	errors     []ErrorEvent
	warnings   []ErrorEvent

	lastCurrent int
	lastSample  time.Time
	speed       SpeedStats
	samples     int
	sparkline   *Sparkline
}

// SpeedStats is throughput in items per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Item       string
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// NewProgressTracker starts a tracker at StageLoad.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageLoad,
		start:      now,
		stageStart: now,
		lastSample: now,
		sparkline:  NewSparkline(60),
	}
}

// SetStage moves to a new stage and resets the per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.item = ""
	p.stageStart = now
	p.lastCurrent = 0
	p.lastSample = now
	p.speed = SpeedStats{}
	p.samples = 0
	p.sparkline.Reset()
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current, total int, item string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.update(current, total, item, time.Now())
}

func (p *ProgressTracker) update(current, total int, item string, now time.Time) {
	p.current = current
	if total > 0 {
		p.total = total
	}
	if item != "" {
		p.item = item
	}

	elapsed := now.Sub(p.lastSample)
	if elapsed < speedInterval {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		v := float64(delta) / elapsed.Seconds()
		p.samples++
		if p.samples == 1 {
			p.speed.Avg = v
		} else {
			p.speed.Avg = 0.2*v + 0.8*p.speed.Avg
		}
		p.speed.Current = v
		p.speed.Peak = max(p.speed.Peak, v)
		p.sparkline.Add(v)
	}
	p.lastCurrent = current
	p.lastSample = now
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Progress:   p.fraction(),
		ETA:        p.eta(),
		Item:       p.item,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Speed:      p.speed,
	}
}

// fraction is progress in [0,1]. Must hold p.mu.
func (p *ProgressTracker) fraction() float64 {
	if p.total <= 0 {
		return 0
	}
	return min(float64(p.current)/float64(p.total), 1)
}

// eta extrapolates the stage's elapsed time. Must hold p.mu.
func (p *ProgressTracker) eta() time.Duration {
	f := p.fraction()
	if f <= 0 || f >= 1 {
		return 0
	}
	elapsed := time.Since(p.stageStart)
	return time.Duration(float64(elapsed)/f) - elapsed
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.start)
}

// Errors returns recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.errors)
}

// Warnings returns recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.warnings)
}

// RenderSparkline draws recent throughput.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sparkline.Render(width)
}
