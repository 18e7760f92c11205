// Package relay forwards received telegrams as text lines to a serial port, e.g. to drive an external display.
package relay

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/ftl/dcf39/rx"
)

const DefaultBaudRate = 9600

// Relay writes one line per reception to the underlying writer.
type Relay struct {
	mutex sync.Mutex
	out   io.WriteCloser
	name  string
}

// Open opens the given serial port with 8N1 framing.
func Open(portName string, baudRate int) (*Relay, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open serial port %s", portName)
	}
	log.Infof("relaying telegrams to %s at %d baud", portName, baudRate)

	return New(port, portName), nil
}

func New(out io.WriteCloser, name string) *Relay {
	return &Relay{
		out:  out,
		name: name,
	}
}

// Ports lists the available serial ports.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "cannot list serial ports")
	}
	return ports, nil
}

func (r *Relay) TelegramReceived(reception rx.Reception) {
	line := strings.TrimRight(reception.Line(), "\n") + "\r\n"

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.out == nil {
		return
	}
	_, err := io.WriteString(r.out, line)
	if err != nil {
		log.Errorf("cannot relay telegram %d to %s: %v", reception.Sequence, r.name, err)
	}
}

func (r *Relay) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.out == nil {
		return nil
	}
	err := r.out.Close()
	r.out = nil
	return err
}
