package lobby

import "sync"

// session is the Lobby's only per-connection state, grounded on
// ClientInfo in lobby_server.cpp. The Lobby never keeps a copy of Room
// data; the State Service remains the sole source of truth for
// everything except which connection a username is currently on.
type session struct {
	conn           *connHandle
	username       string
	authed         bool
	roomID         int
	spectateRoomID int
}

// sessionTable is the Go analogue of g_clients + g_clients_mutex: a
// mutex-guarded registry of every connected client, keyed by the
// connHandle that owns its socket.
type sessionTable struct {
	mu     sync.Mutex
	byConn map[*connHandle]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{byConn: make(map[*connHandle]*session)}
}

func (t *sessionTable) add(c *connHandle) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &session{conn: c}
	t.byConn[c] = s
	return s
}

func (t *sessionTable) remove(c *connHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byConn, c)
}

// snapshot returns a copy of the session's fields, avoiding the need for
// callers to hold the table lock while they use the values.
func (t *sessionTable) snapshot(c *connHandle) session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.byConn[c]; ok {
		return *s
	}
	return session{}
}

func (t *sessionTable) mutate(c *connHandle, fn func(s *session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.byConn[c]; ok {
		fn(s)
	}
}

// Len reports how many connections currently have a session, used by
// the admin /stats endpoint.
func (t *sessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byConn)
}

// findByUsername is the Go analogue of find_fd_by_username: only an
// authenticated session counts as a match. It finds a connection to push
// a notification down, and backs isOnlineLocally's best-effort LOGIN
// fast path; the CAS on the State Service stays the authority on logins.
func (t *sessionTable) findByUsername(username string) *connHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn, s := range t.byConn {
		if s.authed && s.username == username {
			return conn
		}
	}
	return nil
}

// isOnlineLocally is the best-effort local scan used as a fast path
// ahead of the CAS round trip during LOGIN, matching lobby_server.cpp's
// inline loop over g_clients. It is never authoritative.
func (t *sessionTable) isOnlineLocally(username string) bool {
	return t.findByUsername(username) != nil
}
