package segment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a half-open [Start, End) range of minutes after local midnight.
type Window struct {
	ID    string
	Start int
	End   int
}

func (w Window) contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// Picker chooses a segment for a point in time. It holds no mutable state;
// randomness comes from the intn argument of Pick.
type Picker struct {
	Location *time.Location
	Windows  []Window
	// Weights maps segment key to one weight per window, in Windows order.
	Weights map[string][]int
}

// WindowAt returns the window covering t in the picker's location.
func (p Picker) WindowAt(t time.Time) (Window, bool) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()
	for _, w := range p.Windows {
		if w.contains(minute) {
			return w, true
		}
	}
	return Window{}, false
}

// Pool lists each segment key repeated by its weight for the window at t.
func (p Picker) Pool(t time.Time) []string {
	w, ok := p.WindowAt(t)
	if !ok {
		return nil
	}
	idx := -1
	for i := range p.Windows {
		if p.Windows[i].ID == w.ID {
			idx = i
			break
		}
	}
	var pool []string
	for _, key := range Keys() {
		weights := p.Weights[key]
		if idx >= len(weights) {
			continue
		}
		for n := 0; n < weights[idx]; n++ {
			pool = append(pool, key)
		}
	}
	return pool
}

// Pick draws one segment for t. intn must behave like rand.Intn.
// It reports false outside every window or when the window's pool is empty.
func (p Picker) Pick(t time.Time, intn func(int) int) (string, bool) {
	pool := p.Pool(t)
	if len(pool) == 0 {
		return "", false
	}
	return pool[intn(len(pool))], true
}
