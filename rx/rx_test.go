package rx

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/dcf39/telegram"
)

// 2024-03-17, Sunday, 12:34:56, telegram number 1
var timePayload = []byte{0x10, 0x00, 0x00, 0x00, 56 << 2, 34, 12, 0<<5 | 17, 3, 24}

func mustEncode(t *testing.T, payload []byte) telegram.Telegram {
	t.Helper()
	result, err := telegram.Encode(payload)
	require.NoError(t, err)
	return result
}

func TestNewReception(t *testing.T) {
	timestamp := time.Date(2024, time.March, 17, 11, 34, 57, 0, time.UTC)
	tt := []struct {
		desc           string
		payload        []byte
		expectHeader   bool
		expectDateTime bool
	}{
		{"empty payload", []byte{}, false, false},
		{"short payload", []byte{0x10, 0x00}, false, false},
		{"other telegram type", []byte{0x20, 0x01, 0x02, 0x03}, true, false},
		{"date and time", timePayload, true, true},
		{"invalid date and time", []byte{0x10, 0x00, 0x00, 0x00, 0, 99, 12, 17, 3, 24}, true, false},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			reception := NewReception(1, timestamp, time.Second, mustEncode(t, tc.payload))

			assert.Equal(t, tc.expectHeader, reception.Header != nil, "header")
			assert.Equal(t, tc.expectDateTime, reception.DateTime != nil, "date and time")
		})
	}
}

func TestReception_Line(t *testing.T) {
	timestamp := time.Date(2024, time.March, 17, 11, 34, 57, 0, time.UTC)

	plain := NewReception(1, timestamp, 0, mustEncode(t, []byte{0x20, 0x01}))
	withDateTime := NewReception(2, timestamp, 0, mustEncode(t, timePayload))

	assert.Equal(t, "2024-03-17T11:34:57Z 68 02 02 68 20 01 21 16\n", plain.Line())
	assert.Equal(t, "2024-03-17T11:34:57Z 68 0A 0A 68 10 00 00 00 E0 22 0C 11 03 18 4A 16 [2024-3-17 (Sun) - 12:34:56]\n", withDateTime.Line())
}

func TestTextReporter(t *testing.T) {
	out := &bytes.Buffer{}
	reporter := NewTextReporter(out)

	reporter.TelegramReceived(NewReception(3, time.Now(), time.Hour+2*time.Minute+3*time.Second+456*time.Millisecond, mustEncode(t, timePayload)))

	expected := "[01:02:03.456] telegram 3: 68 0A 0A 68 10 00 00 00 E0 22 0C 11 03 18 4A 16\n" +
		"  #1 A1=00 A2=00 UD=00 E0 22 0C 11 03 18\n" +
		"  date and time: 2024-3-17 (Sun) - 12:34:56\n"
	assert.Equal(t, expected, out.String())
}

func TestMultiReporter(t *testing.T) {
	var first, second []int
	reporter := MultiReporter{
		ReporterFunc(func(r Reception) { first = append(first, r.Sequence) }),
		ReporterFunc(func(r Reception) { second = append(second, r.Sequence) }),
	}

	reporter.TelegramReceived(Reception{Sequence: 1})
	reporter.TelegramReceived(Reception{Sequence: 2})

	assert.Equal(t, []int{1, 2}, first)
	assert.Equal(t, []int{1, 2}, second)
}

func TestFormatOffset(t *testing.T) {
	tt := []struct {
		offset   time.Duration
		expected string
	}{
		{0, "[00:00:00.000]"},
		{806333 * time.Microsecond, "[00:00:00.806]"},
		{25*time.Hour + 1500*time.Millisecond, "[25:00:01.500]"},
	}
	for _, tc := range tt {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, formatOffset(tc.offset))
		})
	}
}
