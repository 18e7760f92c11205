package rx

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/synth"
	"github.com/ftl/dcf39/trace"
)

type receptionCollector struct {
	mutex      sync.Mutex
	receptions []Reception
}

func (c *receptionCollector) TelegramReceived(reception Reception) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.receptions = append(c.receptions, reception)
}

func (c *receptionCollector) get() []Reception {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Reception{}, c.receptions...)
}

func writeBlocks(t *testing.T, receiver *Receiver, samples []int16, blockSize int) {
	for len(samples) > 0 {
		n := min(blockSize, len(samples))
		written, err := receiver.Write(samples[:n])
		require.NoError(t, err)
		require.Equal(t, n, written)
		samples = samples[n:]
	}
}

func TestReceiver_ReportsTelegrams(t *testing.T) {
	now := time.Date(2024, time.March, 17, 11, 35, 0, 0, time.UTC)
	clock := &manualClock{now: now}
	collector := &receptionCollector{}
	receiver := NewReceiver(collector, clock, fsk.SampleRate, 0)
	samples := synthesize(t, synth.DefaultConfig, timePayload, []byte{0x20, 0x01, 0x02})

	writeBlocks(t, receiver, samples, 1000)
	receiver.Close()

	receptions := collector.get()
	require.Len(t, receptions, 2)

	assert.Equal(t, 1, receptions[0].Sequence)
	assert.Equal(t, now, receptions[0].Timestamp)
	assert.Equal(t, mustEncode(t, timePayload), receptions[0].Telegram)
	require.NotNil(t, receptions[0].DateTime)
	assert.Equal(t, 56, receptions[0].DateTime.Second)

	assert.Equal(t, 2, receptions[1].Sequence)
	require.NotNil(t, receptions[1].Header)
	assert.Equal(t, byte(0x01), receptions[1].Header.A1)
	assert.Nil(t, receptions[1].DateTime)
	assert.Greater(t, receptions[1].Offset, receptions[0].Offset)

	stats := receiver.Stats()
	assert.Equal(t, len(samples), stats.Samples)
	assert.Equal(t, len(samples)/fsk.DecimationFactor, stats.Chips)
	assert.Equal(t, 2, stats.Telegrams)
	assert.Greater(t, stats.Level, 0.0)
}

func TestReceiver_WriteCopiesSamples(t *testing.T) {
	collector := &receptionCollector{}
	receiver := NewReceiver(collector, &manualClock{}, fsk.SampleRate, 0)
	samples := synthesize(t, synth.DefaultConfig, timePayload)

	buf := make([]int16, 500)
	for i := 0; i < len(samples); i += len(buf) {
		n := copy(buf, samples[i:])
		_, err := receiver.Write(buf[:n])
		require.NoError(t, err)
		clear(buf)
	}
	receiver.Close()

	assert.Len(t, collector.get(), 1)
}

func TestReceiver_WriteAfterClose(t *testing.T) {
	receiver := NewReceiver(&receptionCollector{}, nil, fsk.SampleRate, 0)
	receiver.Close()

	n, err := receiver.Write(make([]int16, 10))

	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, n)
	receiver.Close()
}

func TestReceiver_Reset(t *testing.T) {
	collector := &receptionCollector{}
	receiver := NewReceiver(collector, &manualClock{}, fsk.SampleRate, 0)
	samples := synthesize(t, synth.DefaultConfig, timePayload)
	half := len(samples) / 2

	writeBlocks(t, receiver, samples[:half], 1000)
	receiver.Reset()
	writeBlocks(t, receiver, samples[half:], 1000)
	receiver.Close()

	assert.Empty(t, collector.get())
}

func TestReceiver_StatsIncludeWrittenSamples(t *testing.T) {
	receiver := NewReceiver(&receptionCollector{}, &manualClock{}, fsk.SampleRate, 0)
	defer receiver.Close()
	samples := synthesize(t, synth.DefaultConfig, timePayload)

	writeBlocks(t, receiver, samples, 100)
	stats := receiver.Stats()

	assert.Equal(t, len(samples), stats.Samples)
	assert.Equal(t, 1, stats.Telegrams)
}

func TestReceiver_ResetKeepsOrder(t *testing.T) {
	samples := synthesize(t, synth.DefaultConfig, timePayload)
	half := len(samples) / 2
	for i := 0; i < 10; i++ {
		collector := &receptionCollector{}
		receiver := NewReceiver(collector, &manualClock{}, fsk.SampleRate, 0)

		writeBlocks(t, receiver, samples[:half], 50)
		receiver.Reset()
		writeBlocks(t, receiver, samples[half:], 50)
		receiver.Close()

		require.Empty(t, collector.get(), "run %d", i)
	}
}

func TestReceiver_TracerFlushedOnClose(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "decode.csv")
	receiver := NewReceiver(&receptionCollector{}, &manualClock{}, fsk.SampleRate, 0)
	receiver.SetTracer(trace.NewFileTracer(traceDecode, filename))

	writeBlocks(t, receiver, synthesize(t, synth.DefaultConfig, timePayload), 1000)
	receiver.Close()

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, strings.Count(string(content), ";byte;"), 16)
	assert.Contains(t, string(content), ";byte;68;1\n")
}
