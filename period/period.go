package period

import (
	"errors"
	"fmt"
	"time"
)

// ErrPeriodNotFound means no voting period covers the requested instant or
// (year, quarter, week) reference.
var ErrPeriodNotFound = errors.New("period not found")

// Config controls where week boundaries fall and how trailing partial weeks
// are split between calendar quarters. The absorption overhang and the week
// boundary are deployment configuration, not fixed rules.
type Config struct {
	Weekday  time.Weekday // weekday a new week starts on
	Hour     int          // local hour the boundary falls on
	Location *time.Location

	// AbsorbMaxOverhang is the longest a week window may extend past a
	// calendar quarter's end and still count as that quarter's final week.
	// Anything longer becomes week 1 of the next quarter.
	AbsorbMaxOverhang time.Duration

	MinYear int
	MaxYear int
}

func DefaultConfig() Config {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Weekday:           time.Monday,
		Hour:              18,
		Location:          loc,
		AbsorbMaxOverhang: 3 * 24 * time.Hour,
		MinYear:           2015,
		MaxYear:           2035,
	}
}

// Period is one voting week: a half-open window [Start, End) identified by
// (Year, Quarter, Week). Periods tile the timeline with no gaps or overlaps.
type Period struct {
	Year    int       `json:"year"`
	Quarter int       `json:"quarter"`
	Week    int       `json:"week"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func (p Period) ID() string {
	return fmt.Sprintf("%d-%d-%02d", p.Year, p.Quarter, p.Week)
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Resolver{cfg: cfg}
}

// Resolve maps an instant to the period containing it. Every instant maps to
// exactly one period; the boundary instant belongs to the week it starts.
func (r *Resolver) Resolve(t time.Time) (Period, error) {
	ws := r.windowStart(t)
	year, quarter := r.assign(ws)
	if year < r.cfg.MinYear || year > r.cfg.MaxYear {
		return Period{}, ErrPeriodNotFound
	}
	first := r.firstWindow(year, quarter)
	week := 1
	for w := first; w.Before(ws); w = w.AddDate(0, 0, 7) {
		week++
	}
	return Period{
		Year:    year,
		Quarter: quarter,
		Week:    week,
		Start:   ws,
		End:     ws.AddDate(0, 0, 7),
	}, nil
}

// ResolveYQW is the inverse lookup: the period for an explicit
// (year, quarter, week) reference.
func (r *Resolver) ResolveYQW(year, quarter, week int) (Period, error) {
	if year < r.cfg.MinYear || year > r.cfg.MaxYear || quarter < 1 || quarter > 4 || week < 1 {
		return Period{}, ErrPeriodNotFound
	}
	first := r.firstWindow(year, quarter)
	ws := first.AddDate(0, 0, 7*(week-1))
	if y, q := r.assign(ws); y != year || q != quarter {
		return Period{}, ErrPeriodNotFound
	}
	return Period{
		Year:    year,
		Quarter: quarter,
		Week:    week,
		Start:   ws,
		End:     ws.AddDate(0, 0, 7),
	}, nil
}

// QuarterID returns the stable id for a (year, quarter) pair, used to
// validate foreign references without a second timestamp computation.
func (r *Resolver) QuarterID(year, quarter int) (string, error) {
	if year < r.cfg.MinYear || year > r.cfg.MaxYear || quarter < 1 || quarter > 4 {
		return "", ErrPeriodNotFound
	}
	return fmt.Sprintf("%d-%d", year, quarter), nil
}

// windowStart finds the most recent week boundary at or before t.
func (r *Resolver) windowStart(t time.Time) time.Time {
	t = t.In(r.cfg.Location)
	b := time.Date(t.Year(), t.Month(), t.Day(), r.cfg.Hour, 0, 0, 0, r.cfg.Location)
	back := (int(t.Weekday()) - int(r.cfg.Weekday) + 7) % 7
	b = b.AddDate(0, 0, -back)
	if b.After(t) {
		b = b.AddDate(0, 0, -7)
	}
	return b
}

// assign decides which quarter owns the week window starting at ws. A window
// crossing a calendar quarter end stays in the ending quarter only when its
// overhang is within AbsorbMaxOverhang.
func (r *Resolver) assign(ws time.Time) (int, int) {
	year := ws.Year()
	quarter := (int(ws.Month())-1)/3 + 1
	we := ws.AddDate(0, 0, 7)
	qEnd := r.quarterStart(nextQuarter(year, quarter))
	if we.After(qEnd) && we.Sub(qEnd) > r.cfg.AbsorbMaxOverhang {
		return nextQuarter(year, quarter)
	}
	return year, quarter
}

// firstWindow returns the start of week 1 of the given quarter: the window
// containing the calendar quarter start if that window belongs to the
// quarter, otherwise the one after it.
func (r *Resolver) firstWindow(year, quarter int) time.Time {
	qs := r.quarterStart(year, quarter)
	ws := r.windowStart(qs)
	if y, q := r.assign(ws); y == year && q == quarter {
		return ws
	}
	return ws.AddDate(0, 0, 7)
}

func (r *Resolver) quarterStart(year, quarter int) time.Time {
	return time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, r.cfg.Location)
}

func nextQuarter(year, quarter int) (int, int) {
	if quarter == 4 {
		return year + 1, 1
	}
	return year, quarter + 1
}
