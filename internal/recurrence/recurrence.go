package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Freq is how often a recurring task comes back after it is completed.
type Freq int

const (
	None Freq = iota
	Daily
	Weekly
	Monthly
)

var freqNames = map[Freq]string{
	None:    "none",
	Daily:   "daily",
	Weekly:  "weekly",
	Monthly: "monthly",
}

var freqFromName = map[string]Freq{
	"":        None,
	"none":    None,
	"daily":   Daily,
	"weekly":  Weekly,
	"monthly": Monthly,
}

// Parse parses a frequency name. An empty string means None.
func Parse(s string) (Freq, error) {
	f, ok := freqFromName[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return None, fmt.Errorf("unknown recurrence: %q", s)
	}
	return f, nil
}

func (f Freq) String() string {
	if name, ok := freqNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Freq(%d)", int(f))
}

// Recurring reports whether completing a task with this frequency spawns a successor.
func (f Freq) Recurring() bool {
	return f != None
}

// Next returns the occurrence after from. Monthly steps keep the day of the
// month when the target month has it and otherwise land on its last day, so
// Jan 31 is followed by Feb 28 (or 29), not Mar 3. Next on None returns from.
func (f Freq) Next(from time.Time) time.Time {
	switch f {
	case Daily:
		return from.AddDate(0, 0, 1)
	case Weekly:
		return from.AddDate(0, 0, 7)
	case Monthly:
		return addMonth(from)
	}
	return from
}

func addMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Describe returns a human-readable description of the frequency.
func (f Freq) Describe() string {
	switch f {
	case Daily:
		return "Repeats daily"
	case Weekly:
		return "Repeats weekly"
	case Monthly:
		return "Repeats monthly"
	}
	return "Does not repeat"
}
