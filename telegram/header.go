package telegram

import (
	"fmt"

	"github.com/pkg/errors"
)

// HeaderSize is the number of payload bytes in front of the user data.
const HeaderSize = 3

// Header is the fixed part of the payload.
type Header struct {
	// Number is the telegram number from the upper nibble of the first payload byte.
	Number int
	// A1 and A2 address the telegram type.
	A1       byte
	A2       byte
	UserData []byte
	Checksum byte
}

// ParseHeader splits the payload of the given telegram into its header fields.
func ParseHeader(t Telegram) (Header, error) {
	payload := t.Payload()
	if len(payload) < HeaderSize {
		return Header{}, errors.Errorf("payload too short for a header: %d bytes", len(payload))
	}
	return Header{
		Number:   int(payload[0] >> 4),
		A1:       payload[1],
		A2:       payload[2],
		UserData: payload[HeaderSize:],
		Checksum: t.Checksum(),
	}, nil
}

func (h Header) String() string {
	return fmt.Sprintf("#%d A1=%02X A2=%02X UD=% X", h.Number, h.A1, h.A2, h.UserData)
}
