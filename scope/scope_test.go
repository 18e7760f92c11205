package scope

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStopScope(t *testing.T) {
	scope := NewScopeServer("localhost:")

	err := scope.Start()
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	assert.True(t, scope.Active())
	assert.NotNil(t, scope.Addr())

	scope.Stop()
	time.Sleep(10 * time.Millisecond)
	assert.False(t, scope.Active())
}

func TestNullScope(t *testing.T) {
	var scope Scope = NewNullScope()

	assert.False(t, scope.Active())
	scope.ShowTimeFrame(&TimeFrame{})
	scope.ShowSpectralFrame(&SpectralFrame{})
}

func TestEncodeTimeFrame(t *testing.T) {
	timestamp := time.Date(2024, time.March, 17, 12, 34, 56, 789, time.UTC)
	expected := &TimeFrame{
		Frame:  Frame{Stream: "demod", Timestamp: timestamp},
		Values: map[ChannelID]float64{"comb": 612, "chip": 1},
	}

	raw, err := encodeTimeFrame(expected)
	require.NoError(t, err)
	frame, kind, err := readFrame(raw)
	require.NoError(t, err)
	actual := readTimeFrame(frame, raw.GetFields())

	assert.Equal(t, kindTime, kind)
	assert.Equal(t, expected.Stream, actual.Stream)
	assert.True(t, expected.Timestamp.Equal(actual.Timestamp))
	assert.Equal(t, expected.Values, actual.Values)
}

func TestEncodeSpectralFrame(t *testing.T) {
	expected := &SpectralFrame{
		Frame:            Frame{Stream: "survey", Timestamp: time.Unix(1700000000, 0).UTC()},
		FromFrequency:    0,
		ToFrequency:      7500,
		Values:           []float64{1, 2, 3},
		FrequencyMarkers: map[MarkerID]float64{"mark": 830},
		MagnitudeMarkers: map[MarkerID]float64{"noise": 0.5},
	}

	raw, err := encodeSpectralFrame(expected)
	require.NoError(t, err)
	frame, kind, err := readFrame(raw)
	require.NoError(t, err)
	actual := readSpectralFrame(frame, raw.GetFields())

	assert.Equal(t, kindSpectral, kind)
	assert.Equal(t, expected.Values, actual.Values)
	assert.Equal(t, expected.ToFrequency, actual.ToFrequency)
	assert.Equal(t, expected.FrequencyMarkers, actual.FrequencyMarkers)
	assert.Equal(t, expected.MagnitudeMarkers, actual.MagnitudeMarkers)
}

func TestFrameRoundTrip(t *testing.T) {
	scope := NewScopeServer("localhost:")

	err := scope.Start()
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	defer scope.Stop()

	client := NewClient(scope.Addr().String())
	err = client.Open()
	require.NoError(t, err)
	defer client.Close()

	timeFrames, spectralFrames, err := client.GetFrames(context.Background())
	require.NoError(t, err)

	framesReceived := &sync.WaitGroup{}
	framesReceived.Add(2)
	var timeFrame *TimeFrame
	var spectralFrame *SpectralFrame
	go func() {
		for i := 0; i < 2; i++ {
			select {
			case frame := <-timeFrames:
				timeFrame = frame
			case frame := <-spectralFrames:
				spectralFrame = frame
			}
			framesReceived.Done()
		}
	}()
	time.Sleep(100 * time.Millisecond)

	scope.ShowTimeFrame(&TimeFrame{Frame: Frame{Stream: "frame1", Timestamp: time.Now()}})
	scope.ShowSpectralFrame(&SpectralFrame{Frame: Frame{Stream: "frame2", Timestamp: time.Now()}})
	framesReceived.Wait()

	assert.Equal(t, StreamID("frame1"), timeFrame.Stream)
	assert.Equal(t, StreamID("frame2"), spectralFrame.Stream)
}
