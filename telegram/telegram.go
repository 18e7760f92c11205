// Package telegram recovers framed data telegrams from a stream of chips.
//
// A telegram on the wire looks like this:
//
//	0x68 N N 0x68 <N payload bytes> <checksum> 0x16
//
// The checksum is the sum of the payload bytes modulo 256. Each byte is transmitted as one start
// bit (0), eight data bits LSB first, one even parity bit and one stop bit (1). Every bit lasts
// SymbolWidth chips.
package telegram

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// StartMarker opens the telegram and is repeated after the length fields.
	StartMarker byte = 0x68
	// StopMarker closes the telegram.
	StopMarker byte = 0x16

	// MaxTelegramSize is the capacity of the telegram buffer in bytes.
	MaxTelegramSize = 32
	// Overhead is the number of bytes in a telegram besides the payload.
	Overhead = 6
	// MaxPayloadLength is the largest payload that fits into the telegram buffer.
	MaxPayloadLength = MaxTelegramSize - Overhead
)

// Telegram is a complete, validated frame including markers, length fields, checksum, and stop marker.
type Telegram []byte

// Length returns the payload length N as given in the length field.
func (t Telegram) Length() int {
	if len(t) < 2 {
		return 0
	}
	return int(t[1])
}

// Payload returns the N payload bytes.
func (t Telegram) Payload() []byte {
	n := t.Length()
	if len(t) < 4+n {
		return nil
	}
	return t[4 : 4+n]
}

// Checksum returns the transmitted checksum.
func (t Telegram) Checksum() byte {
	n := t.Length()
	if len(t) < 5+n {
		return 0
	}
	return t[4+n]
}

func (t Telegram) String() string {
	parts := make([]string, len(t))
	for i, b := range t {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// Checksum is the sum of the given bytes modulo 256.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

// Encode frames the given payload.
func Encode(payload []byte) (Telegram, error) {
	if len(payload) > MaxPayloadLength {
		return nil, errors.Errorf("payload too long: %d bytes, at most %d allowed", len(payload), MaxPayloadLength)
	}

	n := byte(len(payload))
	result := make(Telegram, 0, len(payload)+Overhead)
	result = append(result, StartMarker, n, n, StartMarker)
	result = append(result, payload...)
	result = append(result, Checksum(payload), StopMarker)

	return result, nil
}

// Validate runs the given bytes through a framer. It returns the telegram if the bytes form exactly one valid
// telegram.
func Validate(frame []byte) (Telegram, error) {
	framer := NewFramer()
	for i, b := range frame {
		complete, rejection := framer.Push(b)
		if rejection != NoRejection {
			return nil, errors.Errorf("byte %d: %v", i+1, rejection)
		}
		if complete {
			if i != len(frame)-1 {
				return nil, errors.Errorf("%d trailing bytes", len(frame)-i-1)
			}
			return framer.Telegram(), nil
		}
	}
	return nil, errors.Errorf("incomplete telegram: %d bytes", len(frame))
}
