// Package scope provides a visualisation of the inner workings of the decoder in form of
// spectral and time domain plots.
//
// Frames are streamed to remote clients over gRPC as google.protobuf.Struct messages.
package scope

import (
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

type StreamID string
type ChannelID string
type MarkerID string

type Frame struct {
	Stream    StreamID
	Timestamp time.Time
}

type TimeFrame struct {
	Frame
	Values map[ChannelID]float64
}

type SpectralFrame struct {
	Frame
	FromFrequency    float64
	ToFrequency      float64
	Values           []float64
	FrequencyMarkers map[MarkerID]float64
	MagnitudeMarkers map[MarkerID]float64
}

// Scope shows frames.
type Scope interface {
	Active() bool
	ShowTimeFrame(*TimeFrame)
	ShowSpectralFrame(*SpectralFrame)
}

// NullScope discards all frames.
type NullScope struct{}

func NewNullScope() *NullScope {
	return &NullScope{}
}

func (s *NullScope) Active() bool                     { return false }
func (s *NullScope) ShowTimeFrame(*TimeFrame)         {}
func (s *NullScope) ShowSpectralFrame(*SpectralFrame) {}

const (
	kindTime     = "time"
	kindSpectral = "spectral"

	fieldKind             = "kind"
	fieldStream           = "stream"
	fieldTimestamp        = "timestamp"
	fieldValues           = "values"
	fieldFromFrequency    = "from_frequency"
	fieldToFrequency      = "to_frequency"
	fieldFrequencyMarkers = "frequency_markers"
	fieldMagnitudeMarkers = "magnitude_markers"
)

func encodeTimeFrame(frame *TimeFrame) (*structpb.Struct, error) {
	values := make(map[string]any, len(frame.Values))
	for channel, value := range frame.Values {
		values[string(channel)] = value
	}
	return structpb.NewStruct(map[string]any{
		fieldKind:      kindTime,
		fieldStream:    string(frame.Stream),
		fieldTimestamp: frame.Timestamp.Format(time.RFC3339Nano),
		fieldValues:    values,
	})
}

func encodeSpectralFrame(frame *SpectralFrame) (*structpb.Struct, error) {
	values := make([]any, len(frame.Values))
	for i, value := range frame.Values {
		values[i] = value
	}
	return structpb.NewStruct(map[string]any{
		fieldKind:             kindSpectral,
		fieldStream:           string(frame.Stream),
		fieldTimestamp:        frame.Timestamp.Format(time.RFC3339Nano),
		fieldFromFrequency:    frame.FromFrequency,
		fieldToFrequency:      frame.ToFrequency,
		fieldValues:           values,
		fieldFrequencyMarkers: encodeMarkers(frame.FrequencyMarkers),
		fieldMagnitudeMarkers: encodeMarkers(frame.MagnitudeMarkers),
	})
}

func encodeMarkers(markers map[MarkerID]float64) map[string]any {
	result := make(map[string]any, len(markers))
	for marker, value := range markers {
		result[string(marker)] = value
	}
	return result
}

func readFrame(frame *structpb.Struct) (Frame, string, error) {
	fields := frame.GetFields()
	kind := fields[fieldKind].GetStringValue()
	if kind == "" {
		return Frame{}, "", errors.New("frame without kind")
	}
	result := Frame{
		Stream: StreamID(fields[fieldStream].GetStringValue()),
	}
	timestamp, err := time.Parse(time.RFC3339Nano, fields[fieldTimestamp].GetStringValue())
	if err != nil {
		return Frame{}, "", errors.Wrap(err, "invalid frame timestamp")
	}
	result.Timestamp = timestamp
	return result, kind, nil
}

func readTimeFrame(frame Frame, fields map[string]*structpb.Value) *TimeFrame {
	result := &TimeFrame{
		Frame:  frame,
		Values: make(map[ChannelID]float64),
	}
	for channel, value := range fields[fieldValues].GetStructValue().GetFields() {
		result.Values[ChannelID(channel)] = value.GetNumberValue()
	}
	return result
}

func readSpectralFrame(frame Frame, fields map[string]*structpb.Value) *SpectralFrame {
	values := fields[fieldValues].GetListValue().GetValues()
	result := &SpectralFrame{
		Frame:            frame,
		FromFrequency:    fields[fieldFromFrequency].GetNumberValue(),
		ToFrequency:      fields[fieldToFrequency].GetNumberValue(),
		Values:           make([]float64, len(values)),
		FrequencyMarkers: readMarkers(fields[fieldFrequencyMarkers]),
		MagnitudeMarkers: readMarkers(fields[fieldMagnitudeMarkers]),
	}
	for i, value := range values {
		result.Values[i] = value.GetNumberValue()
	}
	return result
}

func readMarkers(value *structpb.Value) map[MarkerID]float64 {
	result := make(map[MarkerID]float64)
	for marker, v := range value.GetStructValue().GetFields() {
		result[MarkerID(marker)] = v.GetNumberValue()
	}
	return result
}
