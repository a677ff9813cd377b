package monitor

import (
	"errors"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// MessageConnection abstracts over a full-message socket so the Hub's
// register/unregister/broadcast loop never has to import
// gorilla/websocket directly, which is also what lets hub_test.go drive
// the Hub with a fake connection instead of an upgraded HTTP socket.
// Only a websocket implementation exists here: there is no UDP
// transport anywhere in this system, and an operator dashboard is
// never the far end of a relay pair the way the teacher's peers were,
// so CloseWithMessage below carries a shutdown reason meant for a human
// reading a dashboard rather than a peer handoff message.
type MessageConnection interface {
	ReadMessage() ([]byte, net.Addr, error)
	WriteMessage(data []byte) error
	CloseWithMessage(reason string) error
	Close() error
	IsClosed() bool
}

// WebsocketMessageConnection is the Hub's only MessageConnection
// implementation, wrapping one operator dashboard's upgraded
// connection.
type WebsocketMessageConnection struct {
	socket *websocket.Conn
	closed atomic.Bool
}

// NewWebsocketMessageConnection wraps an already-upgraded socket.
func NewWebsocketMessageConnection(socket *websocket.Conn) *WebsocketMessageConnection {
	return &WebsocketMessageConnection{socket: socket}
}

func (c *WebsocketMessageConnection) ReadMessage() ([]byte, net.Addr, error) {
	_, data, err := c.socket.ReadMessage()
	if err != nil && websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.closed.Store(true)
	}
	return data, c.socket.RemoteAddr(), err
}

func (c *WebsocketMessageConnection) WriteMessage(data []byte) error {
	return c.socket.WriteMessage(websocket.TextMessage, data)
}

// CloseWithMessage sends a close frame carrying reason before closing
// the socket. Hub.Run calls this on every still-registered dashboard
// when it shuts down, so the client sees why the feed went away instead
// of a bare dropped connection.
func (c *WebsocketMessageConnection) CloseWithMessage(reason string) error {
	closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := c.socket.WriteMessage(websocket.CloseMessage, closeFrame); err != nil {
		return err
	}
	return c.Close()
}

func (c *WebsocketMessageConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return errors.New("connection already closed")
	}
	return c.socket.Close()
}

func (c *WebsocketMessageConnection) IsClosed() bool {
	return c.closed.Load()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades an admin dashboard's HTTP connection to a websocket
// and registers it with the hub, so it starts receiving every
// subsequent published Event.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.Register(NewWebsocketMessageConnection(socket))
}
