package rx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/scope"
	"github.com/ftl/dcf39/synth"
	"github.com/ftl/dcf39/telegram"
)

func synthesize(t require.TestingT, config synth.Config, payloads ...[]byte) []int16 {
	synthesizer := synth.New(config)
	var result []int16
	for _, payload := range payloads {
		samples, err := synthesizer.Telegram(payload)
		require.NoError(t, err)
		result = append(result, samples...)
	}
	return result
}

func TestSymbolWidthMatchesDemodulator(t *testing.T) {
	assert.Equal(t, fsk.ChipsPerSymbol, telegram.SymbolWidth)
}

func TestPipeline_Example(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x12, 0x34, 0x56}
	samples := synthesize(t, synth.DefaultConfig, payload)
	pipeline := NewPipeline(fsk.SampleRate)

	var received []telegram.Telegram
	var offset time.Duration
	for _, sample := range samples {
		if tg, ok := pipeline.Push(sample); ok {
			received = append(received, tg)
			offset = pipeline.Offset()
		}
	}

	require.Len(t, received, 1)
	assert.Equal(t, telegram.Telegram{0x68, 0x05, 0x05, 0x68, 0x00, 0x00, 0x12, 0x34, 0x56, 0x9C, 0x16}, received[0])
	assert.Equal(t, len(samples), pipeline.Samples())
	assert.Equal(t, len(samples)/fsk.DecimationFactor, pipeline.Chips())
	assert.Equal(t, telegram.Idle, pipeline.State())

	// the telegram ends after 200 ms lead-in and 121 symbols
	frameEnd := 200*time.Millisecond + 121*time.Second/fsk.BaudRate
	assert.GreaterOrEqual(t, offset, frameEnd)
	assert.Less(t, offset, frameEnd+time.Second/fsk.BaudRate)
}

func TestPipeline_ConsecutiveTelegrams(t *testing.T) {
	payloads := [][]byte{
		timePayload,
		{0x01, 0x02, 0x03},
		{},
	}
	pipeline := NewPipeline(fsk.SampleRate)

	received := pipeline.Write(synthesize(t, synth.DefaultConfig, payloads...))

	require.Len(t, received, len(payloads))
	for i, payload := range payloads {
		assert.Equal(t, mustEncode(t, payload), received[i], "telegram %d", i)
	}
}

func TestPipeline_Noise(t *testing.T) {
	config := synth.DefaultConfig
	config.NoiseLevel = 500
	config.Seed = 7
	pipeline := NewPipeline(fsk.SampleRate)

	received := pipeline.Write(synthesize(t, config, timePayload, timePayload))

	require.Len(t, received, 2)
	assert.Equal(t, mustEncode(t, timePayload), received[0])
	assert.Equal(t, mustEncode(t, timePayload), received[1])
}

func TestPipeline_Silence(t *testing.T) {
	pipeline := NewPipeline(fsk.SampleRate)

	received := pipeline.Write(make([]int16, fsk.SampleRate))

	assert.Empty(t, received)
	assert.Equal(t, 0.0, pipeline.Level())
}

func TestPipeline_Reset(t *testing.T) {
	samples := synthesize(t, synth.DefaultConfig, timePayload)
	pipeline := NewPipeline(fsk.SampleRate)
	half := len(samples) / 2

	pipeline.Write(samples[:half])
	pipeline.Reset()
	received := pipeline.Write(samples[half:])

	assert.Empty(t, received)
	assert.Equal(t, len(samples), pipeline.Samples())
}

func TestPipeline_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, telegram.MaxPayloadLength).Draw(t, "payload")
		config := synth.DefaultConfig
		config.NoiseLevel = rapid.SampledFrom([]float64{0, 250, 500}).Draw(t, "noise")
		config.Seed = rapid.Int64().Draw(t, "seed")
		expected, err := telegram.Encode(payload)
		if err != nil {
			t.Fatal(err)
		}
		pipeline := NewPipeline(fsk.SampleRate)

		received := pipeline.Write(synthesize(t, config, payload))

		if len(received) != 1 {
			t.Fatalf("expected one telegram, got %d", len(received))
		}
		if !assert.Equal(t, expected, received[0]) {
			t.FailNow()
		}
	})
}

type recordingScope struct {
	frames []*scope.TimeFrame
}

func (s *recordingScope) Active() bool { return true }
func (s *recordingScope) ShowTimeFrame(frame *scope.TimeFrame) {
	s.frames = append(s.frames, frame)
}

func TestPipeline_Scope(t *testing.T) {
	recorder := &recordingScope{}
	start := time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC)
	pipeline := NewPipeline(fsk.SampleRate)
	pipeline.SetScope(recorder)
	pipeline.SetStart(start)

	pipeline.Write(synthesize(t, synth.DefaultConfig, timePayload))

	require.Len(t, recorder.frames, pipeline.Chips())
	last := recorder.frames[len(recorder.frames)-1]
	assert.Equal(t, start.Add(pipeline.Offset()), last.Timestamp)
	assert.Equal(t, 1.0, last.Values["chip"])
	assert.Contains(t, last.Values, scope.ChannelID("comb"))
	assert.Less(t, last.Values["level"], 0.0)
}
