package rx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ftl/dcf39/telegram"
	"github.com/ftl/dcf39/timecode"
)

// Reception is a telegram together with the circumstances of its reception.
type Reception struct {
	Sequence  int
	Timestamp time.Time
	// Offset is the position of the telegram's last sample in the received stream.
	Offset   time.Duration
	Telegram telegram.Telegram

	Header   *telegram.Header
	DateTime *timecode.DateTime
}

// NewReception interprets the given telegram as far as possible.
func NewReception(sequence int, timestamp time.Time, offset time.Duration, t telegram.Telegram) Reception {
	result := Reception{
		Sequence:  sequence,
		Timestamp: timestamp,
		Offset:    offset,
		Telegram:  t,
	}

	header, err := telegram.ParseHeader(t)
	if err != nil {
		return result
	}
	result.Header = &header

	if !timecode.Applies(header) {
		return result
	}
	dateTime, err := timecode.Parse(header)
	if err != nil {
		return result
	}
	result.DateTime = &dateTime

	return result
}

// Line formats the reception as one line of text, terminated by a newline.
func (r Reception) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), r.Telegram)
	if r.DateTime != nil {
		fmt.Fprintf(&b, " [%s]", r.DateTime)
	}
	b.WriteString("\n")
	return b.String()
}

type Reporter interface {
	TelegramReceived(reception Reception)
}

type ReporterFunc func(reception Reception)

func (f ReporterFunc) TelegramReceived(reception Reception) {
	f(reception)
}

// MultiReporter forwards each reception to all its reporters.
type MultiReporter []Reporter

func (r MultiReporter) TelegramReceived(reception Reception) {
	for _, reporter := range r {
		reporter.TelegramReceived(reception)
	}
}

type TextReporter struct {
	out io.Writer
}

func NewTextReporter(out io.Writer) *TextReporter {
	if out == nil {
		out = os.Stdout
	}
	return &TextReporter{out: out}
}

func (r *TextReporter) TelegramReceived(reception Reception) {
	fmt.Fprintf(r.out, "%s telegram %d: %s\n", formatOffset(reception.Offset), reception.Sequence, reception.Telegram)
	if reception.Header != nil {
		fmt.Fprintf(r.out, "  %s\n", reception.Header)
	}
	if reception.DateTime != nil {
		fmt.Fprintf(r.out, "  date and time: %s\n", reception.DateTime)
	}
}

func formatOffset(offset time.Duration) string {
	offset = offset.Round(time.Millisecond)
	hours := offset / time.Hour
	minutes := (offset % time.Hour) / time.Minute
	seconds := (offset % time.Minute) / time.Second
	millis := (offset % time.Second) / time.Millisecond
	return fmt.Sprintf("[%02d:%02d:%02d.%03d]", hours, minutes, seconds, millis)
}
