// Package attendance holds the clock-in lateness rules: parsing shift start
// times and mapping minutes late to the tiered denda amounts.
package attendance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidShift reports a shift string whose start time cannot be parsed.
var ErrInvalidShift = errors.New("invalid shift")

// Penalty tiers in rupiah. Arrivals an hour or more late fall past the last
// tier and carry no automatic denda; those cases are handled manually by the
// outlet manager.
const (
	dendaTier1 = 20000
	dendaTier2 = 50000
	dendaTier3 = 75000
)

// ParseShiftStart extracts the scheduled start from a shift string such as
// "09.00 - 17.00" or "10:00-18:00" and anchors it to day's calendar date in
// loc.
func ParseShiftStart(shift string, day time.Time, loc *time.Location) (time.Time, error) {
	start := shift
	for _, sep := range []string{" - ", "-", "–"} {
		if i := strings.Index(start, sep); i >= 0 {
			start = start[:i]
			break
		}
	}
	start = strings.TrimSpace(start)
	start = strings.ReplaceAll(start, ".", ":")

	parts := strings.SplitN(start, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidShift, shift)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidShift, shift)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidShift, shift)
	}

	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc), nil
}

// MinutesLate is the whole number of minutes clockIn falls after shiftStart.
// Early or exactly on-time arrivals are zero or negative; fractional minutes
// truncate toward zero.
func MinutesLate(shiftStart, clockIn time.Time) int {
	return int(clockIn.Sub(shiftStart) / time.Minute)
}

// PenaltyForMinutes maps minutes late to the denda amount. On-time and early
// arrivals owe nothing, and lateness of an hour or more escalates to manual
// handling rather than an automatic charge.
func PenaltyForMinutes(minutesLate int) int64 {
	switch {
	case minutesLate <= 0:
		return 0
	case minutesLate <= 20:
		return dendaTier1
	case minutesLate <= 40:
		return dendaTier2
	case minutesLate <= 59:
		return dendaTier3
	default:
		return 0
	}
}

// LatePenalty computes minutes late and the denda for a clock-in against a
// shift string, using clockIn's day in loc as the shift date.
func LatePenalty(shift string, clockIn time.Time, loc *time.Location) (minutesLate int, denda int64, err error) {
	start, err := ParseShiftStart(shift, clockIn, loc)
	if err != nil {
		return 0, 0, err
	}
	minutesLate = MinutesLate(start, clockIn)
	return minutesLate, PenaltyForMinutes(minutesLate), nil
}
