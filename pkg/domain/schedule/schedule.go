// Package schedule turns working hours and booked intervals into a day's slot grid.
package schedule

import (
	"fmt"
	"time"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

// Day describes everything needed to lay out one day for one service.
type Day struct {
	Date     time.Time     // any instant on the day; its location is the shop's
	Open     time.Duration // first label, offset from midnight
	Close    time.Duration // labels start strictly before Close
	Step     time.Duration
	Duration time.Duration // length of the service being booked
	Hours    []model.WorkingHours
	Busy     []model.Interval
	Now      time.Time
}

// At is the instant of the label at offset. The offset is a wall-clock
// reading, so on DST transition days it is not the time elapsed since midnight.
func (d Day) At(offset time.Duration) time.Time {
	y, m, dd := d.Date.Date()
	return time.Date(y, m, dd, int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, d.Date.Location())
}

// OnGrid reports whether offset is one of the day's labels.
func (d Day) OnGrid(offset time.Duration) bool {
	return d.Step > 0 && offset >= d.Open && offset < d.Close && (offset-d.Open)%d.Step == 0
}

// Label formats an offset from midnight as HH:MM.
func Label(offset time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(offset.Hours()), int(offset.Minutes())%60)
}

// ParseLabel is the inverse of Label.
func ParseLabel(label string) (time.Duration, error) {
	t, err := time.Parse("15:04", label)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Grid returns every label of the day in order. A label is available when at
// least one barber from Hours can take [label, label+Duration) inside their
// shift without touching a booked interval, and the label is not in the past.
func Grid(d Day) []model.TimeSlot {
	if d.Step <= 0 {
		return nil
	}
	var out []model.TimeSlot
	for off := d.Open; off < d.Close; off += d.Step {
		out = append(out, model.TimeSlot{
			Time:      Label(off),
			Available: len(Free(d, off)) > 0,
		})
	}
	return out
}

// Free lists the barbers able to take a booking starting at offset, in the
// order they appear in Hours.
func Free(d Day, offset time.Duration) []int64 {
	start := d.At(offset)
	end := start.Add(d.Duration)
	if !d.Now.IsZero() && start.Before(d.Now) {
		return nil
	}

	var out []int64
	for _, h := range d.Hours {
		if offset < h.Start || offset+d.Duration > h.End {
			continue
		}
		if busy(d.Busy, h.StaffID, start, end) {
			continue
		}
		out = append(out, h.StaffID)
	}
	return out
}

func busy(intervals []model.Interval, staffID int64, start, end time.Time) bool {
	for _, iv := range intervals {
		if iv.StaffID == staffID && start.Before(iv.End) && iv.Start.Before(end) {
			return true
		}
	}
	return false
}
