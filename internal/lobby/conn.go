package lobby

import (
	"errors"
	"io"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/twoseat/arcade/internal/frame"
	"github.com/twoseat/arcade/internal/logging"
)

// connHandle wraps one client socket. Its reader goroutine is the only
// thing that ever calls Recv on the socket; every write goes through
// Send, which is called from the Server's single dispatcher goroutine,
// apart from the WELCOME LOBBY greeting the accept loop sends before the
// connection's reader starts, so no mutex is needed here — mirroring how
// lobby_server.cpp itself only ever touches a client fd from its one
// poll() thread.
type connHandle struct {
	conn   net.Conn
	peer   string
	logger *log.Entry
}

func newConnHandle(conn net.Conn, logger *log.Entry) *connHandle {
	return &connHandle{conn: conn, peer: "client " + conn.RemoteAddr().String(), logger: logger}
}

func (c *connHandle) Send(body string) error {
	logging.Communication(c.logger, "TX", c.peer, body)
	return frame.Send(c.conn, []byte(body))
}

func (c *connHandle) recv() (string, error) {
	body, err := frame.Recv(c.conn)
	if err != nil {
		return "", err
	}
	logging.Communication(c.logger, "RX", c.peer, string(body))
	return string(body), nil
}

func (c *connHandle) Close() error {
	return c.conn.Close()
}

// isPeerClosed reports whether err represents an ordinary client
// disconnect rather than an unexpected transport failure worth logging
// at a higher level.
func isPeerClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
