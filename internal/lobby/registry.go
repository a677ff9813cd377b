package lobby

import "sync"

// gameEntry is what the Game Registry remembers about a live match,
// grounded on g_game_ports/g_game_tokens in lobby_server.cpp.
type gameEntry struct {
	port  uint16
	token string
}

// GameRegistry is the Lobby-local, mutex-guarded map from roomId to the
// running match's port and capability token. An entry exists iff a
// Match Runtime is alive for that room and hasn't yet invoked its
// completion callback.
type GameRegistry struct {
	mu      sync.Mutex
	entries map[int]gameEntry
}

// NewGameRegistry returns an empty registry.
func NewGameRegistry() *GameRegistry {
	return &GameRegistry{entries: make(map[int]gameEntry)}
}

// Set records a newly started match, called right after the listener
// for it is opened.
func (g *GameRegistry) Set(roomID int, port uint16, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[roomID] = gameEntry{port: port, token: token}
}

// Get returns the port and token for a live match, and whether one
// exists.
func (g *GameRegistry) Get(roomID int) (port uint16, token string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[roomID]
	return e.port, e.token, ok
}

// Delete removes the entry once the Match Runtime's completion callback
// fires.
func (g *GameRegistry) Delete(roomID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, roomID)
}

// Len reports how many matches are currently live, used by the admin
// /stats endpoint.
func (g *GameRegistry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
