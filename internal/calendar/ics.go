package calendar

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
)

const icsProductID = "-//caresched//booking mirror//EN"

// ICSDir keeps one .ics file per calendar id under a directory. It is meant
// for single-node deployments that publish calendars as static files.
type ICSDir struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewICSDir(dir string) (*ICSDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ICSDir{dir: dir, now: time.Now}, nil
}

func (d *ICSDir) CreateEvent(_ context.Context, calendarID string, ev Event) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cal, err := d.load(calendarID)
	if err != nil {
		return "", err
	}
	uid := ev.BookingID.String() + "@caresched"
	removeEvent(cal, uid)
	vev := cal.AddEvent(uid)
	vev.SetCreatedTime(d.now())
	d.fill(vev, ev)
	if err := d.save(calendarID, cal); err != nil {
		return "", err
	}
	return uid, nil
}

func (d *ICSDir) UpdateEvent(_ context.Context, calendarID, eventID string, ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cal, err := d.load(calendarID)
	if err != nil {
		return err
	}
	vev := findEvent(cal, eventID)
	if vev == nil {
		return ErrEventNotFound
	}
	d.fill(vev, ev)
	return d.save(calendarID, cal)
}

func (d *ICSDir) DeleteEvent(_ context.Context, calendarID, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cal, err := d.load(calendarID)
	if err != nil {
		return err
	}
	if !removeEvent(cal, eventID) {
		return ErrEventNotFound
	}
	return d.save(calendarID, cal)
}

func (d *ICSDir) fill(vev *ical.VEvent, ev Event) {
	now := d.now()
	vev.SetDtStampTime(now)
	vev.SetModifiedAt(now)
	vev.SetStartAt(ev.Start.UTC())
	vev.SetEndAt(ev.End.UTC())
	vev.SetSummary(ev.Summary)
	vev.SetDescription(ev.Description)
}

func (d *ICSDir) path(calendarID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '@':
			return r
		}
		return '_'
	}, calendarID)
	return filepath.Join(d.dir, name+".ics")
}

func (d *ICSDir) load(calendarID string) (*ical.Calendar, error) {
	f, err := os.Open(d.path(calendarID))
	if errors.Is(err, fs.ErrNotExist) {
		cal := ical.NewCalendar()
		cal.SetMethod(ical.MethodPublish)
		cal.SetProductId(icsProductID)
		return cal, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ical.ParseCalendar(f)
}

// save writes through a temp file so readers never see a partial calendar.
func (d *ICSDir) save(calendarID string, cal *ical.Calendar) error {
	target := d.path(calendarID)
	tmp, err := os.CreateTemp(d.dir, ".caresched-*.ics")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(cal.Serialize()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func findEvent(cal *ical.Calendar, uid string) *ical.VEvent {
	for _, ev := range cal.Events() {
		if ev.Id() == uid {
			return ev
		}
	}
	return nil
}

func removeEvent(cal *ical.Calendar, uid string) bool {
	kept := cal.Components[:0]
	removed := false
	for _, c := range cal.Components {
		if ev, ok := c.(*ical.VEvent); ok && ev.Id() == uid {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	cal.Components = kept
	return removed
}
