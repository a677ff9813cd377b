package lobby

import (
	"context"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/twoseat/arcade/internal/frame"
	"github.com/twoseat/arcade/internal/logging"
)

// dbRequest is one command waiting to be sent to the State Service,
// along with the channel its caller blocks on for the reply.
type dbRequest struct {
	cmd   string
	reply chan dbReply
}

type dbReply struct {
	body string
	err  error
}

// DBClient is the dedicated actor owning the Lobby's single connection
// to the State Service, grounded on db_req + g_db_mutex in
// lobby_server.cpp. Every caller sends a dbRequest and blocks on its own
// reply channel; because exactly one goroutine ever touches the
// connection, requests are answered strictly in the order they were
// sent without exposing a mutex at call sites.
type DBClient struct {
	conn    net.Conn
	peer    string
	logger  *log.Entry
	pending chan dbRequest
	done    chan struct{}
}

// DialDBClient connects to the State Service. It does not start the
// actor; the caller must call Run in its own goroutine.
func DialDBClient(ip string, port uint16, logger *log.Entry) (*DBClient, error) {
	addr := fmt.Sprintf("%s:%d", ip, port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("lobby: connect to state service %s: %w", addr, err)
	}
	return &DBClient{
		conn:    conn,
		peer:    "db:" + addr,
		logger:  logger,
		pending: make(chan dbRequest, 64),
		done:    make(chan struct{}),
	}, nil
}

// Done returns a channel that is closed once the State Service connection
// has failed, or ctx passed to Run has been cancelled. cmd/lobby/main.go
// watches this to bring the whole process down per spec.md's "if the
// State Service connection dies, the Lobby exits" requirement, rather
// than leaving callers of Send blocked on a connection that will never
// recover.
func (c *DBClient) Done() <-chan struct{} {
	return c.done
}

// Run is the actor's loop: one request in flight at a time, matching the
// synchronous send-then-recv round trip db_req performs while holding
// g_db_mutex.
func (c *DBClient) Run(ctx context.Context) {
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			close(c.done)
			return
		case req := <-c.pending:
			body, err := c.roundTrip(req.cmd)
			req.reply <- dbReply{body: body, err: err}
			if err != nil {
				// The connection is unusable and there is no
				// reconnection without state to reconcile. Close done
				// so the process can shut down, then keep answering
				// every request still queued and every request
				// submitted from here on with the same error until ctx
				// is cancelled, so no Send call blocks forever.
				close(c.done)
				c.drainWithError(ctx, err)
				return
			}
		}
	}
}

func (c *DBClient) drainWithError(ctx context.Context, err error) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.pending:
			req.reply <- dbReply{err: err}
		}
	}
}

func (c *DBClient) roundTrip(cmd string) (string, error) {
	logging.Communication(c.logger, "TX", c.peer, cmd)
	if err := frame.Send(c.conn, []byte(cmd)); err != nil {
		return "", fmt.Errorf("lobby: state service send: %w", err)
	}
	body, err := frame.Recv(c.conn)
	if err != nil {
		return "", fmt.Errorf("lobby: state service recv: %w", err)
	}
	logging.Communication(c.logger, "RX", c.peer, string(body))
	return string(body), nil
}

// Send submits cmd to the actor and blocks for its reply. It is safe to
// call concurrently from any number of goroutines.
func (c *DBClient) Send(cmd string) (string, error) {
	req := dbRequest{cmd: cmd, reply: make(chan dbReply, 1)}
	c.pending <- req
	resp := <-req.reply
	return resp.body, resp.err
}
