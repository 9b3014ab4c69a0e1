package ui

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Initial(t *testing.T) {
	p := NewProgressTracker()

	s := p.Stats()
	assert.Equal(t, StageLoad, s.Stage)
	assert.Zero(t, s.Progress)
	assert.Zero(t, s.ETA)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	p := NewProgressTracker()
	p.Update(5, 10, "a")

	p.SetStage(StageChunk, 20)

	s := p.Stats()
	assert.Equal(t, StageChunk, s.Stage)
	assert.Equal(t, 20, s.Total)
	assert.Zero(t, s.Current)
	assert.Empty(t, s.Item)
}

func TestProgressTracker_ProgressClamped(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageEmbed, 4)

	p.Update(2, 0, "")
	assert.InDelta(t, 0.5, p.Stats().Progress, 1e-9)

	p.Update(9, 0, "")
	assert.InDelta(t, 1.0, p.Stats().Progress, 1e-9)
	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_ItemKeptWhenEmpty(t *testing.T) {
	p := NewProgressTracker()
	p.Update(1, 3, "batch 1")
	p.Update(2, 3, "")

	assert.Equal(t, "batch 1", p.Stats().Item)
}

func TestProgressTracker_Speed(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageEmbed, 100)
	base := p.lastSample

	p.mu.Lock()
	p.update(10, 0, "", base.Add(100*time.Millisecond))
	assert.Zero(t, p.speed.Current, "sampled too early")
	p.update(10, 0, "", base.Add(time.Second))
	p.update(40, 0, "", base.Add(2*time.Second))
	p.mu.Unlock()

	s := p.Stats().Speed
	assert.InDelta(t, 30, s.Current, 1e-9)
	assert.InDelta(t, 30, s.Peak, 1e-9)
	assert.InDelta(t, 0.2*30+0.8*10, s.Avg, 1e-9)
	assert.Equal(t, 2, p.sparkline.Len())
}

func TestProgressTracker_Errors(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{Err: errors.New("a")})
	p.AddError(ErrorEvent{Err: errors.New("b"), IsWarn: true})
	p.AddError(ErrorEvent{Err: errors.New("c"), IsWarn: true})

	s := p.Stats()
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, 2, s.WarnCount)
	assert.Len(t, p.Errors(), 1)
	assert.Len(t, p.Warnings(), 2)
}

func TestProgressTracker_Concurrent(t *testing.T) {
	p := NewProgressTracker()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				p.Update(i*100+j, 1000, "x")
				_ = p.Stats()
				_ = p.RenderSparkline(20)
			}
		}()
	}
	wg.Wait()
}

func TestSparkline_Render(t *testing.T) {
	s := NewSparkline(4)
	assert.Equal(t, "    ", s.Render(0))

	s.Add(0)
	s.Add(7)
	assert.Equal(t, "▁█  ", s.Render(4))

	for _, v := range []float64{7, 0, 7, 0} {
		s.Add(v)
	}
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, "▁█▁", s.Render(3))

	s.Reset()
	assert.Zero(t, s.Len())
}

func TestSparkline_NegativeClamped(t *testing.T) {
	s := NewSparkline(2)
	s.Add(-5)
	s.Add(2)
	assert.Equal(t, "▁█", s.Render(2))
}
