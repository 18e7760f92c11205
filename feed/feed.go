// Package feed broadcasts received telegrams to websocket clients as CBOR messages.
//
// Each message is a binary websocket message containing the CBOR array [type, payload], where payload is a map
// with integer keys.
package feed

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/ftl/dcf39/rx"
	"github.com/ftl/dcf39/telegram"
)

type MessageType uint8

const (
	MsgHello    MessageType = 0x01
	MsgTelegram MessageType = 0x10
)

const (
	clientQueueSize = 16
	writeTimeout    = 5 * time.Second
)

// Hello is sent to every client right after connecting.
type Hello struct {
	Version    string `cbor:"1,keyasint"`
	SampleRate int    `cbor:"2,keyasint"`
}

type DateTime struct {
	Year    int  `cbor:"1,keyasint"`
	Month   int  `cbor:"2,keyasint"`
	Day     int  `cbor:"3,keyasint"`
	Weekday int  `cbor:"4,keyasint"`
	Hour    int  `cbor:"5,keyasint"`
	Minute  int  `cbor:"6,keyasint"`
	Second  int  `cbor:"7,keyasint"`
	DST     bool `cbor:"8,keyasint"`
}

// Telegram describes one received telegram.
type Telegram struct {
	Sequence  int       `cbor:"1,keyasint"`
	Timestamp int64     `cbor:"2,keyasint"` // unix milliseconds
	Offset    int64     `cbor:"3,keyasint"` // milliseconds since the start of the stream
	Frame     []byte    `cbor:"4,keyasint"`
	Number    int       `cbor:"5,keyasint,omitempty"`
	A1        byte      `cbor:"6,keyasint,omitempty"`
	A2        byte      `cbor:"7,keyasint,omitempty"`
	UserData  []byte    `cbor:"8,keyasint,omitempty"`
	DateTime  *DateTime `cbor:"9,keyasint,omitempty"`
}

type message struct {
	_       struct{} `cbor:",toarray"`
	Type    MessageType
	Payload cbor.RawMessage
}

func NewTelegram(reception rx.Reception) Telegram {
	result := Telegram{
		Sequence:  reception.Sequence,
		Timestamp: reception.Timestamp.UnixMilli(),
		Offset:    reception.Offset.Milliseconds(),
		Frame:     []byte(reception.Telegram),
	}
	if reception.Header != nil {
		result.Number = reception.Header.Number
		result.A1 = reception.Header.A1
		result.A2 = reception.Header.A2
		result.UserData = reception.Header.UserData
	}
	if reception.DateTime != nil {
		d := reception.DateTime
		result.DateTime = &DateTime{
			Year:    d.Year,
			Month:   int(d.Month),
			Day:     d.Day,
			Weekday: int(d.Weekday),
			Hour:    d.Hour,
			Minute:  d.Minute,
			Second:  d.Second,
			DST:     d.DST,
		}
	}
	return result
}

// Encode encodes the given payload as a feed message.
func Encode(msgType MessageType, payload any) ([]byte, error) {
	rawPayload, err := cbor.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode payload")
	}
	data, err := cbor.Marshal(message{Type: msgType, Payload: rawPayload})
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode message")
	}
	return data, nil
}

// Decode decodes a feed message. The payload is decoded into the value that payloads points to for the decoded
// message type. Messages of other types are returned without decoding their payload. The frame of a telegram
// payload must be a valid telegram.
func Decode(data []byte, payloads map[MessageType]any) (MessageType, error) {
	var msg message
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return 0, errors.Wrap(err, "cannot decode message")
	}
	payload, ok := payloads[msg.Type]
	if !ok {
		return msg.Type, nil
	}
	if err := cbor.Unmarshal(msg.Payload, payload); err != nil {
		return msg.Type, errors.Wrapf(err, "cannot decode payload of message type 0x%02X", msg.Type)
	}
	if t, ok := payload.(*Telegram); ok {
		if _, err := telegram.Validate(t.Frame); err != nil {
			return msg.Type, errors.Wrap(err, "invalid telegram frame")
		}
	}
	return msg.Type, nil
}

// Hub is a http.Handler that upgrades requests to websocket connections and broadcasts all received telegrams to
// the connected clients.
type Hub struct {
	upgrader websocket.Upgrader
	hello    []byte

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	close      chan struct{}
	closed     chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(version string, sampleRate int) (*Hub, error) {
	hello, err := Encode(MsgHello, Hello{Version: version, SampleRate: sampleRate})
	if err != nil {
		return nil, err
	}
	result := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		hello:      hello,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, clientQueueSize),
		close:      make(chan struct{}),
		closed:     make(chan struct{}),
	}
	go result.run()
	return result, nil
}

func (h *Hub) run() {
	defer close(h.closed)
	clients := make(map[*client]bool)
	for {
		select {
		case <-h.close:
			for c := range clients {
				close(c.send)
			}
			return
		case c := <-h.register:
			clients[c] = true
			log.Debugf("websocket client %s connected, %d clients", c.conn.RemoteAddr(), len(clients))
		case c := <-h.unregister:
			if clients[c] {
				delete(clients, c)
				close(c.send)
				log.Debugf("websocket client %s disconnected, %d clients", c.conn.RemoteAddr(), len(clients))
			}
		case data := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- data:
				default:
					log.Warnf("websocket client %s is too slow, dropping it", c.conn.RemoteAddr())
					delete(clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientQueueSize),
	}
	c.send <- h.hello
	select {
	case h.register <- c:
	case <-h.closed:
		conn.Close()
		return
	}

	go c.writeLoop()
	go h.readLoop(c)
}

// readLoop discards incoming messages and unregisters the client when the connection is gone.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			select {
			case h.unregister <- c:
			case <-h.closed:
			}
			return
		}
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := c.conn.WriteMessage(websocket.BinaryMessage, data)
		if err != nil {
			log.Debugf("websocket write to %s failed: %v", c.conn.RemoteAddr(), err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// TelegramReceived broadcasts the given reception to all connected clients.
func (h *Hub) TelegramReceived(reception rx.Reception) {
	data, err := Encode(MsgTelegram, NewTelegram(reception))
	if err != nil {
		log.Errorf("cannot encode telegram: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.closed:
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	select {
	case <-h.close:
	default:
		close(h.close)
	}
	<-h.closed
}

// Server serves the hub on its own HTTP listener.
type Server struct {
	hub    *Hub
	server *http.Server
}

func ListenAndServe(address string, hub *Hub) *Server {
	mux := http.NewServeMux()
	mux.Handle("/", hub)
	result := &Server{
		hub: hub,
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	go func() {
		err := result.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("websocket feed on %s failed: %v", address, err)
		}
	}()
	log.Infof("websocket feed listening on %s", address)
	return result
}

func (s *Server) TelegramReceived(reception rx.Reception) {
	s.hub.TelegramReceived(reception)
}

func (s *Server) Stop() {
	s.hub.Close()
	s.server.Close()
}
