package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutSideBySideWidth is the minimum width to show lamps and zones
	// next to each other.
	LayoutSideBySideWidth = 120
)

// Display limits.
const (
	// NoticeLimit is the number of notifications shown under the lists.
	NoticeLimit = 5
)

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = 250 * time.Millisecond
)
