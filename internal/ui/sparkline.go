package ui

import "strings"

// sparkChars are eight bar heights, lowest first.
var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the most recent samples and draws them as block bars.
type Sparkline struct {
	samples []float64
	size    int
}

// NewSparkline keeps up to size samples. A non-positive size keeps 60.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{size: size}
}

// Add appends a sample, dropping the oldest when full.
func (s *Sparkline) Add(v float64) {
	if v < 0 {
		v = 0
	}
	if len(s.samples) == s.size {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:s.size-1]
	}
	s.samples = append(s.samples, v)
}

// Render draws the newest width samples, oldest on the left, padded with
// spaces on the right. Bars are scaled to the largest visible sample.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = s.size
	}
	visible := s.samples
	if len(visible) > width {
		visible = visible[len(visible)-width:]
	}

	peak := 0.0
	for _, v := range visible {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	for _, v := range visible {
		i := 0
		if peak > 0 {
			i = int(v / peak * float64(len(sparkChars)-1))
		}
		sb.WriteRune(sparkChars[i])
	}
	sb.WriteString(strings.Repeat(" ", width-len(visible)))
	return sb.String()
}

// Reset drops every sample.
func (s *Sparkline) Reset() {
	s.samples = s.samples[:0]
}

// Len returns the number of samples held.
func (s *Sparkline) Len() int {
	return len(s.samples)
}
