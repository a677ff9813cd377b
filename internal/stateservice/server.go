// Package stateservice implements the State Service: the sole
// authoritative holder of Users, Rooms, and GameLogs, grounded on
// db_server.cpp. The original serializes every command through a single
// poll() loop; here a goroutine per connection reads framed requests and
// funnels them through one channel into a single dispatcher goroutine,
// which is the idiomatic-Go way to get the same FIFO, one-command-at-a-
// time guarantee without literally polling file descriptors.
package stateservice

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/twoseat/arcade/internal/frame"
	"github.com/twoseat/arcade/internal/logging"
)

// request is one decoded frame waiting for the dispatcher goroutine,
// along with a channel the connection's reader goroutine blocks on for
// the reply body to write back out.
type request struct {
	body  string
	reply chan string
}

// Server owns the listening socket, the Store, and the single command
// channel every connection's reader goroutine feeds into.
type Server struct {
	store    *Store
	logger   *log.Entry
	commands chan request

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer wires a Server around an already-populated Store (the
// caller is responsible for LoadSnapshot before passing it in).
func NewServer(store *Store, logger *log.Entry) *Server {
	return &Server{
		store:    store,
		logger:   logger,
		commands: make(chan request, 64),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Run accepts connections on ln until ctx is cancelled, spawning one
// reader goroutine per connection and a single dispatcher goroutine that
// owns the Store. Run blocks until every connection has been torn down.
func (s *Server) Run(ctx context.Context, ln net.Listener) {
	var wg sync.WaitGroup

	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatchLoop(done)
	}()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			break
		}
		s.trackConn(conn, true)
		s.logger.WithField("peer", conn.RemoteAddr()).Info("client connected")

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(conn)
		}()
	}

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	close(done)
	wg.Wait()
}

func (s *Server) trackConn(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// serveConn reads frames off one connection and submits each to the
// dispatcher, writing back whatever reply it gets. A single connection's
// requests are necessarily serialized because this goroutine does not
// read the next frame until the previous reply has been sent, matching
// the original's fully synchronous per-client request/response cycle.
func (s *Server) serveConn(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	defer func() {
		conn.Close()
		s.trackConn(conn, false)
		s.logger.WithField("peer", peer).Info("client disconnected")
	}()

	for {
		body, err := frame.Recv(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.WithField("peer", peer).WithError(err).Debug("frame read failed")
			}
			return
		}
		logging.Communication(s.logger, "RX", peer, string(body))

		reply := make(chan string, 1)
		s.commands <- request{body: string(body), reply: reply}
		resp := <-reply

		logging.Communication(s.logger, "TX", peer, resp)
		if err := frame.Send(conn, []byte(resp)); err != nil {
			s.logger.WithField("peer", peer).WithError(err).Debug("frame write failed")
			return
		}
	}
}

// dispatchLoop is the single goroutine that ever touches the Store's
// write path; it is the Go analogue of db_server.cpp's poll() loop body.
func (s *Server) dispatchLoop(done <-chan struct{}) {
	for {
		select {
		case req := <-s.commands:
			req.reply <- Dispatch(s.store, req.body)
		case <-done:
			// Drain anything already queued before shutting down so no
			// connection goroutine is left blocked on an unanswered reply.
			for {
				select {
				case req := <-s.commands:
					req.reply <- Dispatch(s.store, req.body)
				default:
					return
				}
			}
		}
	}
}
