package mqtt

import (
	"sync"
	"time"
)

// DailyStats counts turns, tokens, and bookings since local midnight.
// It is safe for concurrent use.
type DailyStats struct {
	mu       sync.Mutex
	turns    int64
	tokens   int64
	bookings int64
	day      int
	loc      *time.Location
	now      func() time.Time
}

// DailySnapshot is a point-in-time copy of [DailyStats].
type DailySnapshot struct {
	Turns    int64 `json:"turns_today"`
	Tokens   int64 `json:"tokens_today"`
	Bookings int64 `json:"bookings_today"`
}

// NewDailyStats creates counters that reset at midnight in loc. A nil
// loc means [time.Local].
func NewDailyStats(loc *time.Location) *DailyStats {
	if loc == nil {
		loc = time.Local
	}
	d := &DailyStats{loc: loc, now: time.Now}
	d.day = d.today()
	return d
}

func (d *DailyStats) today() int {
	t := d.now().In(d.loc)
	return t.Year()*1000 + t.YearDay()
}

// OnTurn records one completed agent turn.
func (d *DailyStats) OnTurn(inputTokens, outputTokens int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollover()
	d.turns++
	d.tokens += int64(inputTokens + outputTokens)
}

// OnBooking records one created booking.
func (d *DailyStats) OnBooking() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollover()
	d.bookings++
}

// Snapshot returns today's totals.
func (d *DailyStats) Snapshot() DailySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollover()
	return DailySnapshot{Turns: d.turns, Tokens: d.tokens, Bookings: d.bookings}
}

// rollover zeroes the counters when the local date changes. Caller
// holds d.mu.
func (d *DailyStats) rollover() {
	if today := d.today(); today != d.day {
		d.turns, d.tokens, d.bookings = 0, 0, 0
		d.day = today
	}
}
