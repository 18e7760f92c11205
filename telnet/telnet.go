// Package telnet announces received telegrams to all clients connected via TCP, one line per telegram.
package telnet

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/ftl/dcf39/rx"
	"github.com/ftl/dcf39/telegram"
)

const (
	newConnectionDeadline        = 100 * time.Millisecond
	connectionKeepAlivePeriod    = 30 * time.Second
	readBufferSize               = 1024
	defaultTelegramSilencePeriod = time.Minute
)

type telegramHash string

func newTelegramHash(t telegram.Telegram) telegramHash {
	hash := md5.Sum(t)
	return telegramHash(hex.EncodeToString(hash[:]))
}

type Server struct {
	listener *net.TCPListener
	version  string

	connections []*Connection

	lastTelegrams map[telegramHash]time.Time
	silencePeriod time.Duration

	msg    chan []byte
	close  chan struct{}
	closed chan struct{}
}

func NewServer(address string, version string) (*Server, error) {
	result := &Server{
		version:       version,
		lastTelegrams: make(map[telegramHash]time.Time),
		silencePeriod: defaultTelegramSilencePeriod,
		msg:           make(chan []byte, 1),
		close:         make(chan struct{}),
		closed:        make(chan struct{}),
	}

	localAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve address %s", address)
	}

	listener, err := net.ListenTCP("tcp", localAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot listen on %s", address)
	}
	result.listener = listener

	go result.run()

	return result, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) run() {
	defer close(s.closed)
	defer s.listener.Close()
	welcome := fmt.Sprintf("DCF39 telegram decoder version %s\n", s.version)

	removeConnections := make([]int, 0, 10)
	for {
		select {
		case <-s.close:
			for _, conn := range s.connections {
				conn.Close()
			}
			return
		case bytes := <-s.msg:
			removeConnections = removeConnections[:0]
			for i, conn := range s.connections {
				_, err := conn.Write(bytes)
				if err != nil {
					log.Debugf("found closed connection %s", conn.String())
					removeConnections = append(removeConnections, i)
				}
			}
			for i, index := range removeConnections {
				s.removeConnection(index - i)
			}
		default:
			err := s.listener.SetDeadline(time.Now().Add(newConnectionDeadline))
			if err != nil {
				log.Errorf("setting the listener deadline failed: %v", err)
				return
			}
			conn, err := s.listener.AcceptTCP()
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// nobody is calling
				continue
			} else if err != nil {
				log.Error(err)
				continue
			}

			log.Infof("new incoming connection: %v", conn.RemoteAddr())
			conn.SetKeepAlivePeriod(connectionKeepAlivePeriod)
			conn.SetKeepAlive(true)
			connection := NewConnection(conn, conn.RemoteAddr().String(), welcome)
			s.connections = append(s.connections, connection)
		}
	}
}

func (s *Server) removeConnection(index int) {
	if index < 0 || index >= len(s.connections) {
		return
	}
	log.Debugf("removing connection %s", s.connections[index].String())
	last := len(s.connections) - 1
	if index < last {
		copy(s.connections[index:], s.connections[index+1:])
	}
	s.connections[last] = nil
	s.connections = s.connections[:last]
}

func (s *Server) Stop() {
	select {
	case <-s.close:
		<-s.closed
	default:
		close(s.close)
		<-s.closed
	}
}

// SetSilencePeriod sets the period in which a repeated telegram is not announced again.
func (s *Server) SetSilencePeriod(silencePeriod time.Duration) {
	s.silencePeriod = silencePeriod
}

// TelegramReceived announces the given reception, unless the same telegram was announced within the silence period.
// It must not be called concurrently.
func (s *Server) TelegramReceived(reception rx.Reception) {
	hash := newTelegramHash(reception.Telegram)
	if !s.shouldAnnounce(hash, reception.Timestamp) {
		return
	}
	s.registerTelegram(hash, reception.Timestamp)
	select {
	case s.msg <- []byte(FormatLine(reception)):
	case <-s.closed:
	}
}

func (s *Server) shouldAnnounce(hash telegramHash, timestamp time.Time) bool {
	lastTime, ok := s.lastTelegrams[hash]
	if !ok {
		return true
	}
	return timestamp.Sub(lastTime) > s.silencePeriod
}

func (s *Server) registerTelegram(hash telegramHash, timestamp time.Time) {
	for h, t := range s.lastTelegrams {
		if timestamp.Sub(t) > s.silencePeriod {
			delete(s.lastTelegrams, h)
		}
	}
	s.lastTelegrams[hash] = timestamp
}

// FormatLine formats a reception for line based outputs.
func FormatLine(reception rx.Reception) string {
	line := reception.Line()
	return strings.TrimRight(line, "\n") + "\r\n"
}

var ErrClosed = errors.New("connection already closed")

type Connection struct {
	conn io.ReadWriteCloser
	name string
	msg  chan []byte

	close  chan struct{}
	closed chan struct{}
}

func NewConnection(conn io.ReadWriteCloser, name string, welcome string) *Connection {
	result := &Connection{
		conn: conn,
		name: name,
		msg:  make(chan []byte, 1),

		close:  make(chan struct{}),
		closed: make(chan struct{}),
	}

	err := result.writeAll([]byte(welcome))
	if err != nil {
		log.Debugf("%s: %v", name, err)
	}

	go result.run()
	go result.readLoop()

	return result
}

func (c *Connection) run() {
	defer close(c.closed)
	defer func() {
		err := c.conn.Close()
		if err != nil {
			log.Debugf("close %s: %v", c.name, err)
		}
	}()

	for {
		select {
		case <-c.close:
			return
		case bytes := <-c.msg:
			err := c.writeAll(bytes)
			if err != nil {
				log.Debugf("%s: %v", c.name, err)
				return
			}
		}
	}
}

// readLoop discards all input until the client hangs up.
func (c *Connection) readLoop() {
	readBuffer := make([]byte, readBufferSize)
	for {
		_, err := c.conn.Read(readBuffer)
		if errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
			c.Close()
			return
		} else if err != nil {
			log.Debugf("%s: %v", c.name, err)
			c.Close()
			return
		}
	}
}

func (c *Connection) writeAll(bytes []byte) error {
	buffer := bytes
	for len(buffer) > 0 {
		n, err := c.conn.Write(buffer)
		if err != nil {
			return err
		}
		buffer = buffer[n:]
	}
	return nil
}

func (c *Connection) Close() {
	select {
	case <-c.close:
		<-c.closed
	default:
		close(c.close)
		<-c.closed
	}
}

func (c *Connection) Write(bytes []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, ErrClosed
	case c.msg <- bytes:
		return len(bytes), nil
	}
}

func (c *Connection) String() string {
	return c.name
}
