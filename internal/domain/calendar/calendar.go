// Package calendar contiene los value types de fecha y hora del día que usa
// el cálculo de dosis. Se construyen una sola vez en los bordes (handlers,
// stores) y viajan validados por el resto del pipeline.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTimeOfDay = errors.New("time must be HH:MM (24h)")
	ErrInvalidSlotKey   = errors.New("scheduled time must be YYYY-MM-DDTHH:MM")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Date es un día calendario sin zona horaria.
type Date struct {
	year  int
	month time.Month
	day   int
}

func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// ParseDate acepta solo YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}, nil
}

// DateOf toma el día calendario de t en loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

func (d Date) IsZero() bool { return d.year == 0 && d.month == 0 && d.day == 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

func (d Date) Compare(o Date) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Within es inclusivo en ambos extremos.
func (d Date) Within(start, end Date) bool {
	return d.Compare(start) >= 0 && d.Compare(end) <= 0
}

func (d Date) AddDays(n int) Date {
	t := time.Date(d.year, d.month, d.day+n, 0, 0, 0, 0, time.UTC)
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay es una hora HH:MM de 24h. Su forma string es la que se
// compara lexicográficamente para ordenar el schedule.
type TimeOfDay struct {
	minutes int
	valid   bool
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	// time.Parse acepta "8:00" con layout "15:04"; exigimos dos dígitos
	// para que el orden por string coincida con el orden real.
	if len(s) != 5 {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return TimeOfDay{minutes: t.Hour()*60 + t.Minute(), valid: true}, nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TimeOfDayOf(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return TimeOfDay{minutes: t.Hour()*60 + t.Minute(), valid: true}
}

func (t TimeOfDay) IsZero() bool { return !t.valid }

func (t TimeOfDay) String() string {
	if !t.valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", t.minutes/60, t.minutes%60)
}

func (t TimeOfDay) Compare(o TimeOfDay) int { return cmpInt(t.minutes, o.minutes) }

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SlotKey identifica un slot de dosis: fecha + "T" + HH:MM.
// Es la identidad exacta contra la que se correlacionan los logs.
type SlotKey struct {
	Date Date
	Time TimeOfDay
}

func NewSlotKey(d Date, t TimeOfDay) SlotKey {
	return SlotKey{Date: d, Time: t}
}

func ParseSlotKey(s string) (SlotKey, error) {
	s = strings.TrimSpace(s)
	datePart, timePart, ok := strings.Cut(s, "T")
	if !ok {
		return SlotKey{}, ErrInvalidSlotKey
	}
	d, err := ParseDate(datePart)
	if err != nil {
		return SlotKey{}, ErrInvalidSlotKey
	}
	t, err := ParseTimeOfDay(timePart)
	if err != nil {
		return SlotKey{}, ErrInvalidSlotKey
	}
	return SlotKey{Date: d, Time: t}, nil
}

func (k SlotKey) String() string {
	return k.Date.String() + "T" + k.Time.String()
}

func (k SlotKey) IsZero() bool { return k.Date.IsZero() || k.Time.IsZero() }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
