package logger

import (
	"fmt"
	"strings"
	"sync"
)

// ProgressBar renders a score against its target as an ASCII bar.
type ProgressBar struct {
	value       float64
	target      float64
	width       int
	enableColor bool
	prefix      string
	mu          sync.RWMutex
}

// NewProgressBar creates a bar for the given target score.
func NewProgressBar(target float64, width int, enableColor bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{
		target:      target,
		width:       width,
		enableColor: enableColor,
	}
}

// Update sets the current score.
func (pb *ProgressBar) Update(value float64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.value = value
}

// Value returns the current score.
func (pb *ProgressBar) Value() float64 {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.value
}

// Target returns the target score.
func (pb *ProgressBar) Target() float64 {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.target
}

// SetPrefix sets a custom prefix for the progress bar
func (pb *ProgressBar) SetPrefix(prefix string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.prefix = prefix
}

// Percentage returns progress toward the target, clamped to 0-100.
func (pb *ProgressBar) Percentage() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.percentage()
}

func (pb *ProgressBar) percentage() int {
	if pb.target <= 0 {
		return 0
	}
	perc := int(pb.value * 100 / pb.target)
	if perc > 100 {
		perc = 100
	}
	if perc < 0 {
		perc = 0
	}
	return perc
}

// Render generates the ASCII progress bar string
func (pb *ProgressBar) Render() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	perc := pb.percentage()
	filled := (perc * pb.width) / 100

	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", pb.width-filled) + "]"
	result := fmt.Sprintf("%s%s %g/%g (%d%%)", pb.prefix, bar, pb.value, pb.target, perc)

	if pb.enableColor && perc < 100 {
		result = fmt.Sprintf("\033[36m%s\033[0m", result) // Cyan for in-progress
	} else if pb.enableColor {
		result = fmt.Sprintf("\033[32m%s\033[0m", result) // Green for target reached
	}

	return result
}
