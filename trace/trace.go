// Package trace writes semicolon separated internal values of the signal chain to a file or a UDP destination.
package trace

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

const udpPrefix = "udp://"

type Tracer interface {
	Context() string
	Start()
	Trace(context string, format string, args ...any)
	Stop()
}

// New returns a tracer for the given context. Destinations starting with udp:// are traced to the given host:port,
// all other destinations are file names.
func New(context string, destination string) Tracer {
	if destination == "" || context == "" {
		return new(NoTracer)
	}
	if strings.HasPrefix(destination, udpPrefix) {
		return NewUDPTracer(context, strings.TrimPrefix(destination, udpPrefix))
	}
	return NewFileTracer(context, destination)
}

type NoTracer struct{}

func (t *NoTracer) Context() string              { return "" }
func (t *NoTracer) Start()                       {}
func (t *NoTracer) Trace(string, string, ...any) {}
func (t *NoTracer) Stop()                        {}

type FileTracer struct {
	context  string
	filename string
	file     *os.File
	out      *bufio.Writer
}

func NewFileTracer(context string, filename string) *FileTracer {
	return &FileTracer{
		context:  context,
		filename: filename,
	}
}

func (t *FileTracer) Context() string {
	return t.context
}

func (t *FileTracer) Start() {
	if t.file != nil {
		return
	}

	file, err := os.Create(t.filename)
	if err != nil {
		log.Errorf("cannot start trace: %v", err)
		return
	}
	t.file = file
	t.out = bufio.NewWriter(file)
}

func (t *FileTracer) Trace(context string, format string, args ...any) {
	if t.out == nil {
		return
	}
	if context != t.context {
		return
	}

	fmt.Fprintf(t.out, format, args...)
}

func (t *FileTracer) Stop() {
	if t.file == nil {
		return
	}

	if err := t.out.Flush(); err != nil {
		log.Errorf("cannot flush trace: %v", err)
	}
	t.file.Close()
	t.file = nil
	t.out = nil
}

type UDPTracer struct {
	context string
	addr    *net.UDPAddr
	conn    *net.UDPConn
}

func NewUDPTracer(context string, destination string) *UDPTracer {
	addr, err := net.ResolveUDPAddr("udp", destination)
	if err != nil {
		log.Errorf("cannot parse UDP destination: %v", err)
		return &UDPTracer{context: context}
	}
	return &UDPTracer{
		context: context,
		addr:    addr,
	}
}

func (t *UDPTracer) Context() string {
	return t.context
}

func (t *UDPTracer) Start() {
	if t.conn != nil || t.addr == nil {
		return
	}

	var err error
	t.conn, err = net.DialUDP("udp", nil, t.addr)
	if err != nil {
		t.conn = nil
		log.Errorf("cannot start trace: %v", err)
	}
}

func (t *UDPTracer) Trace(context string, format string, args ...any) {
	if t.conn == nil {
		return
	}
	if context != t.context {
		return
	}

	fmt.Fprintf(t.conn, format, args...)
}

func (t *UDPTracer) Stop() {
	if t.conn == nil {
		return
	}

	t.conn.Close()
	t.conn = nil
}
