// Package common provides shared timing utilities.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Stage is one timed step.
type Stage struct {
	Name     string        `json:"name"     yaml:"name"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Timer measures total elapsed time and optional named laps.
type Timer struct {
	start    time.Time
	lap      time.Time
	name     string
	duration time.Duration
	stages   []Stage
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	now := time.Now()
	return &Timer{start: now, lap: now}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	t := NewTimer()
	t.name = name
	return t
}

// Lap records the time since the previous lap (or start) under name.
func (t *Timer) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(t.lap)
	t.lap = now
	t.stages = append(t.stages, Stage{Name: name, Duration: d})
	return d
}

// Stages returns the recorded laps in order.
func (t *Timer) Stages() []Stage {
	return append([]Stage(nil), t.stages...)
}

// Stop stops the timer and returns the total elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String renders the total and each lap, e.g. "train: 1.2s (load=10ms fit=1.1s)".
func (t *Timer) String() string {
	var b strings.Builder
	if t.name != "" {
		b.WriteString(t.name)
		b.WriteString(": ")
	}
	b.WriteString(t.duration.Round(time.Millisecond).String())
	if len(t.stages) > 0 {
		parts := make([]string, len(t.stages))
		for i, s := range t.stages {
			parts[i] = fmt.Sprintf("%s=%v", s.Name, s.Duration.Round(time.Millisecond))
		}
		b.WriteString(" (" + strings.Join(parts, " ") + ")")
	}
	return b.String()
}
