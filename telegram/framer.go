package telegram

// FramePosition classifies a byte by its 1-based position within a telegram.
type FramePosition int

const (
	AtStartMarker FramePosition = iota
	AtLength
	AtLengthRepeat
	AtSecondStartMarker
	AtPayload
	AtChecksum
	AtStopMarker
)

func (p FramePosition) String() string {
	switch p {
	case AtStartMarker:
		return "start marker"
	case AtLength:
		return "length"
	case AtLengthRepeat:
		return "repeated length"
	case AtSecondStartMarker:
		return "second start marker"
	case AtPayload:
		return "payload"
	case AtChecksum:
		return "checksum"
	case AtStopMarker:
		return "stop marker"
	default:
		return "unknown"
	}
}

// Position returns the classification of the byte at the given 1-based position in a telegram with payload length n.
// n is only relevant for positions behind the second start marker.
func Position(position int, n int) FramePosition {
	switch position {
	case 1:
		return AtStartMarker
	case 2:
		return AtLength
	case 3:
		return AtLengthRepeat
	case 4:
		return AtSecondStartMarker
	case 5 + n:
		return AtChecksum
	case 6 + n:
		return AtStopMarker
	default:
		return AtPayload
	}
}

// Rejection names the reason why a byte or a telegram in progress was discarded.
type Rejection int

const (
	NoRejection Rejection = iota
	BadStartMarker
	LengthMismatch
	LengthOverflow
	BadSecondStartMarker
	BadChecksum
	BadStopMarker
	BadStopBit
	BadParity
	Overflow
	TimedOut
)

func (r Rejection) String() string {
	switch r {
	case NoRejection:
		return "none"
	case BadStartMarker:
		return "bad start marker"
	case LengthMismatch:
		return "length fields differ"
	case LengthOverflow:
		return "length exceeds buffer"
	case BadSecondStartMarker:
		return "bad second start marker"
	case BadChecksum:
		return "bad checksum"
	case BadStopMarker:
		return "bad stop marker"
	case BadStopBit:
		return "bad stop bit"
	case BadParity:
		return "bad parity"
	case Overflow:
		return "too many bytes"
	case TimedOut:
		return "idle timeout"
	default:
		return "unknown"
	}
}

// Framer checks a sequence of bytes against the telegram grammar. Any violation discards the bytes accepted so far.
type Framer struct {
	buffer [MaxTelegramSize]byte
	count  int
	length int

	complete Telegram
}

// NewFramer returns a new empty framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Reset discards the telegram in progress.
func (f *Framer) Reset() {
	clear(f.buffer[:])
	f.count = 0
	f.length = 0
}

// Count returns the number of bytes accepted for the telegram in progress.
func (f *Framer) Count() int {
	return f.count
}

// Telegram returns the telegram completed by the last call of Push, or nil.
func (f *Framer) Telegram() Telegram {
	return f.complete
}

// Push appends the next byte. It returns true if the byte completes a valid telegram. If the byte violates the
// grammar, the framer resets and the reason is returned.
func (f *Framer) Push(b byte) (bool, Rejection) {
	f.complete = nil
	if f.count >= MaxTelegramSize {
		f.Reset()
		return false, Overflow
	}

	f.buffer[f.count] = b
	f.count++

	var rejection Rejection
	switch Position(f.count, f.length) {
	case AtStartMarker:
		if b != StartMarker {
			rejection = BadStartMarker
		}
	case AtLengthRepeat:
		switch {
		case f.buffer[1] != f.buffer[2]:
			rejection = LengthMismatch
		case int(b) > MaxPayloadLength:
			rejection = LengthOverflow
		default:
			f.length = int(b)
		}
	case AtSecondStartMarker:
		if b != StartMarker {
			rejection = BadSecondStartMarker
		}
	case AtChecksum:
		if b != Checksum(f.buffer[4:f.count-1]) {
			rejection = BadChecksum
		}
	case AtStopMarker:
		if b != StopMarker {
			rejection = BadStopMarker
			break
		}
		f.complete = make(Telegram, f.count)
		copy(f.complete, f.buffer[:f.count])
		f.Reset()
		return true, NoRejection
	}

	if rejection != NoRejection {
		f.Reset()
	}
	return false, rejection
}
