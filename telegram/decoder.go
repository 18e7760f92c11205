package telegram

import "math/bits"

const (
	// SymbolWidth is the number of chips per symbol.
	SymbolWidth = 15
	// FrameSymbols is the number of symbols per byte: start bit, eight data bits, parity bit, stop bit.
	FrameSymbols = 11
	// FrameChips is the number of chips per byte.
	FrameChips = FrameSymbols * SymbolWidth
	// IdleTimeout is the number of chips without a completed byte after which a telegram in progress is discarded.
	IdleTimeout = 4 * FrameChips

	sampledSymbols = FrameSymbols - 1
	parityBit      = 8
	stopBit        = 9
)

// SyncState is the synchronization state of the Decoder.
type SyncState int

const (
	// Idle waits for the falling edge of a start bit.
	Idle SyncState = iota
	// BitSearch checks whether the falling edge is followed by a full start bit.
	BitSearch
	// SymbolSampling samples the data, parity and stop bits of a byte.
	SymbolSampling
)

func (s SyncState) String() string {
	switch s {
	case Idle:
		return "idle"
	case BitSearch:
		return "bit search"
	case SymbolSampling:
		return "symbol sampling"
	default:
		return "unknown"
	}
}

// Observer is notified whenever the Decoder discards a byte or a telegram in progress.
type Observer func(rejection Rejection, state SyncState)

// Decoder reassembles bytes from chips and feeds them into a Framer.
type Decoder struct {
	state     SyncState
	index     int
	votes     int
	bits      uint16
	bitIndex  int
	sinceByte int

	framer   *Framer
	complete Telegram
	observer Observer
}

// NewDecoder returns a new idle decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		framer: NewFramer(),
	}
}

// SetObserver sets the observer that is notified about rejections. nil disables notifications.
func (d *Decoder) SetObserver(observer Observer) {
	d.observer = observer
}

// State returns the current synchronization state.
func (d *Decoder) State() SyncState {
	return d.state
}

// ByteCount returns the number of bytes accepted for the telegram in progress.
func (d *Decoder) ByteCount() int {
	return d.framer.Count()
}

// Telegram returns the telegram completed by the last call of Push.
func (d *Decoder) Telegram() (Telegram, bool) {
	return d.complete, d.complete != nil
}

// Reset returns the decoder to Idle and discards the telegram in progress.
func (d *Decoder) Reset() {
	d.state = Idle
	d.index = 0
	d.votes = 0
	d.bits = 0
	d.bitIndex = 0
	d.sinceByte = 0
	d.framer.Reset()
}

// Push feeds the next chip into the decoder. It returns a byte and true when the chip completes a valid byte frame.
func (d *Decoder) Push(chip bool) (byte, bool) {
	d.complete = nil
	d.index++

	if d.framer.Count() > 0 {
		d.sinceByte++
		if d.sinceByte > IdleTimeout {
			d.framer.Reset()
			d.sinceByte = 0
			d.notify(TimedOut)
		}
	}

	if d.state == Idle && !chip {
		d.state = BitSearch
		d.index = 1
		d.votes = 0
		d.bits = 0
		d.bitIndex = 0
	}

	switch d.state {
	case BitSearch:
		if chip {
			d.votes++
		}
		if d.index == SymbolWidth {
			if d.votes < SymbolWidth/2 {
				d.state = SymbolSampling
				d.index = 0
			} else {
				d.state = Idle
			}
			d.votes = 0
		}
	case SymbolSampling:
		if chip {
			d.votes++
		}
		if d.index%SymbolWidth == 0 {
			symbol := d.votes > SymbolWidth/2
			d.votes = 0
			return d.shift(symbol)
		}
	}

	return 0, false
}

func (d *Decoder) shift(symbol bool) (byte, bool) {
	if symbol {
		d.bits |= 1 << d.bitIndex
	}
	d.bitIndex++
	if d.bitIndex < sampledSymbols {
		return 0, false
	}

	frame := d.bits
	d.bits = 0
	d.bitIndex = 0

	if frame&(1<<stopBit) == 0 {
		d.reject(BadStopBit)
		return 0, false
	}
	data := byte(frame)
	ones := bits.OnesCount8(data) + int((frame>>parityBit)&1)
	if ones%2 != 0 {
		d.reject(BadParity)
		return 0, false
	}
	if d.framer.Count() >= MaxTelegramSize {
		d.reject(Overflow)
		return 0, false
	}

	d.state = Idle
	d.sinceByte = 0
	complete, rejection := d.framer.Push(data)
	if rejection != NoRejection {
		d.notify(rejection)
	}
	if complete {
		d.complete = d.framer.Telegram()
	}
	return data, true
}

func (d *Decoder) reject(rejection Rejection) {
	state := d.state
	d.Reset()
	if d.observer != nil {
		d.observer(rejection, state)
	}
}

func (d *Decoder) notify(rejection Rejection) {
	if d.observer != nil {
		d.observer(rejection, d.state)
	}
}
