package ratelimit

import "time"

// entry is a single admitted event inside the trailing window.
type entry struct {
	at     time.Time
	weight int64
}

// window is an ordered sequence of weighted entries. Entries age out once
// they fall on or before the window boundary. Not safe for concurrent use;
// callers hold the limiter's lock.
type window struct {
	entries []entry
	sum     int64
}

// prune drops entries at or before the boundary. An entry exactly at the
// boundary is treated as expired.
func (w *window) prune(boundary time.Time) {
	i := 0
	for i < len(w.entries) && !w.entries[i].at.After(boundary) {
		w.sum -= w.entries[i].weight
		i++
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
}

func (w *window) add(at time.Time, weight int64) {
	w.entries = append(w.entries, entry{at: at, weight: weight})
	w.sum += weight
}

func (w *window) count() int64 {
	return int64(len(w.entries))
}

// oldest returns the timestamp of the oldest in-window entry.
func (w *window) oldest() (time.Time, bool) {
	if len(w.entries) == 0 {
		return time.Time{}, false
	}
	return w.entries[0].at, true
}
