package aggregator

import (
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
)

const (
	// SlotWidth is the length of one volume bucket, in minutes
	SlotWidth = 30

	firstSlotStart = 8*60 + 30  // 08:30
	lastSlotStart  = 18*60 + 30 // 18:30

	lunchStart = 12*60 + 30 // 12:30
	lunchEnd   = 14 * 60    // 14:00
)

// DefaultSlots returns the half-hour labels from 08:30 to 18:30 inclusive
func DefaultSlots() []string {
	slots := make([]string, 0, (lastSlotStart-firstSlotStart)/SlotWidth+1)
	for m := firstSlotStart; m <= lastSlotStart; m += SlotWidth {
		slots = append(slots, cdrtime.FormatClockLabel(m))
	}
	return slots
}

// slotIndex maps slot labels to their start minute. Labels must be ordered.
type slotIndex struct {
	labels []string
	starts []int
}

func newSlotIndex(labels []string) slotIndex {
	idx := slotIndex{}
	for _, label := range labels {
		m, ok := cdrtime.ParseClock(label)
		if !ok {
			continue
		}
		idx.labels = append(idx.labels, label)
		idx.starts = append(idx.starts, m)
	}
	return idx
}

// find returns the latest slot starting at or before minute, or -1 when the
// minute is before the first slot or past the end of the last one.
func (s slotIndex) find(minute int) int {
	n := len(s.starts)
	if n == 0 || minute < s.starts[0] || minute >= s.starts[n-1]+SlotWidth {
		return -1
	}
	found := -1
	for i, start := range s.starts {
		if start > minute {
			break
		}
		found = i
	}
	return found
}

// inLunchBreak reports whether minute falls within 12:30-14:00
func inLunchBreak(minute int) bool {
	return minute >= lunchStart && minute < lunchEnd
}
