// Package timecode interprets the date and time telegrams of the DCF39 service.
package timecode

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/dcf39/telegram"
)

// Size is the minimal length of the user data of a date and time telegram.
const Size = 7

const dstFlag = 0x80

// DateTime is the content of a date and time telegram. The broadcast time is local time of the transmitter.
type DateTime struct {
	Year    int
	Month   time.Month
	Day     int
	Weekday time.Weekday
	Hour    int
	Minute  int
	Second  int
	DST     bool
}

// Applies indicates if the telegram with the given header carries date and time.
func Applies(header telegram.Header) bool {
	return header.A1 == 0 && header.A2 == 0
}

// Parse the user data of a date and time telegram.
func Parse(header telegram.Header) (DateTime, error) {
	if !Applies(header) {
		return DateTime{}, errors.Errorf("no date and time telegram: A1=%02X A2=%02X", header.A1, header.A2)
	}
	data := header.UserData
	if len(data) < Size {
		return DateTime{}, errors.Errorf("user data too short: %d bytes", len(data))
	}
	if data[0] != 0 {
		return DateTime{}, errors.Errorf("first user data byte not zero: %02X", data[0])
	}

	result := DateTime{
		Second:  int(data[1] >> 2),
		Minute:  int(data[2]),
		Hour:    int(data[3] &^ dstFlag),
		DST:     data[3]&dstFlag != 0,
		Weekday: time.Weekday(data[4] >> 5),
		Day:     int(data[4] & 0x1F),
		Month:   time.Month(data[5]),
		Year:    2000 + int(data[6]),
	}

	return result, result.validate()
}

func (d DateTime) validate() error {
	switch {
	case d.Second > 60:
		return errors.Errorf("invalid second: %d", d.Second)
	case d.Minute > 59:
		return errors.Errorf("invalid minute: %d", d.Minute)
	case d.Hour > 23:
		return errors.Errorf("invalid hour: %d", d.Hour)
	case d.Weekday > time.Saturday:
		return errors.Errorf("invalid day of week: %d", d.Weekday)
	case d.Month < time.January || d.Month > time.December:
		return errors.Errorf("invalid month: %d", d.Month)
	case d.Day < 1 || d.Day > daysIn(d.Month, d.Year):
		return errors.Errorf("invalid day of month: %d-%d-%d", d.Year, int(d.Month), d.Day)
	}
	return nil
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Time returns the date and time in the given location.
func (d DateTime) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, 0, loc)
}

func (d DateTime) String() string {
	dst := ""
	if d.DST {
		dst = " DST"
	}
	return fmt.Sprintf("%d-%d-%d (%s) - %d:%02d:%02d%s", d.Year, int(d.Month), d.Day, d.Weekday.String()[:3], d.Hour, d.Minute, d.Second, dst)
}

// FromTime returns the date and time of the given point in time, in its location.
func FromTime(t time.Time) DateTime {
	return DateTime{
		Year:    t.Year(),
		Month:   t.Month(),
		Day:     t.Day(),
		Weekday: t.Weekday(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		DST:     t.IsDST(),
	}
}

// Payload returns the payload of a date and time telegram with the given telegram number.
func (d DateTime) Payload(number int) ([]byte, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.Year < 2000 || d.Year > 2255 {
		return nil, errors.Errorf("year out of range: %d", d.Year)
	}
	if number < 0 || number > 0x0F {
		return nil, errors.Errorf("telegram number out of range: %d", number)
	}
	hour := byte(d.Hour)
	if d.DST {
		hour |= dstFlag
	}
	return []byte{
		byte(number << 4), 0, 0,
		0,
		byte(d.Second << 2),
		byte(d.Minute),
		hour,
		byte(d.Weekday)<<5 | byte(d.Day),
		byte(d.Month),
		byte(d.Year - 2000),
	}, nil
}
