// Package lobby implements the Lobby: the single process that
// authenticates connections, matchmakes Rooms, and launches Match
// Runtimes, grounded on lobby_server.cpp. The Lobby never holds Room
// state of its own — the State Service remains the sole authority — and
// every piece of per-connection state here is exactly what ClientInfo
// tracked in the original.
package lobby

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twoseat/arcade/internal/catalog"
	"github.com/twoseat/arcade/internal/match"
	"github.com/twoseat/arcade/internal/monitor"
)

// clientCommand is one decoded frame waiting for the dispatcher
// goroutine, carrying which connection it arrived on.
type clientCommand struct {
	conn *connHandle
	body string
}

// disconnectEvent tells the dispatcher a connection's reader goroutine
// observed the peer close the socket.
type disconnectEvent struct {
	conn *connHandle
}

// Server is the Lobby process: one dispatcher goroutine processes every
// client command and disconnect in arrival order — the Go analogue of
// lobby_server.cpp's single poll() loop — while a dedicated DBClient
// actor goroutine owns the connection to the State Service.
type Server struct {
	db       *DBClient
	logger   *log.Entry
	sessions *sessionTable
	games    *GameRegistry
	ports    *portAllocator
	tokens   *tokenIssuer
	hook     *webhookNotifier
	hub      *monitor.Hub
	catalog  catalog.Catalog
	matchIP  string

	commands    chan clientCommand
	disconnects chan disconnectEvent

	mu    sync.Mutex
	conns map[*connHandle]struct{}
}

// Config bundles everything the Lobby needs beyond its State Service
// connection, which the caller dials separately via DialDBClient.
type Config struct {
	TokenSecret string
	TokenTTL    time.Duration
	WebhookURL  string
	Catalog     catalog.Catalog
	MatchBindIP string
	MinPort     uint16
	MaxPort     uint16
}

// NewServer wires a Server around an already-connected DBClient.
func NewServer(db *DBClient, logger *log.Entry, hub *monitor.Hub, cfg Config) *Server {
	minPort, maxPort := cfg.MinPort, cfg.MaxPort
	if minPort == 0 {
		minPort = 15000
	}
	if maxPort == 0 {
		maxPort = 60000
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	return &Server{
		db:          db,
		logger:      logger,
		sessions:    newSessionTable(),
		games:       NewGameRegistry(),
		ports:       newPortAllocator(cfg.MatchBindIP, minPort, maxPort),
		tokens:      newTokenIssuer(cfg.TokenSecret, ttl),
		hook:        newWebhookNotifier(cfg.WebhookURL, logger),
		hub:         hub,
		catalog:     cfg.Catalog,
		matchIP:     cfg.MatchBindIP,
		commands:    make(chan clientCommand, 128),
		disconnects: make(chan disconnectEvent, 32),
		conns:       make(map[*connHandle]struct{}),
	}
}

// Run accepts connections on ln until ctx is cancelled.
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
		handle := newConnHandle(conn, s.logger)
		s.sessions.add(handle)
		s.trackConn(handle, true)

		s.logger.WithField("peer", handle.peer).Info("client connected")
		s.publish("CLIENT_CONNECTED", map[string]interface{}{"peer": handle.peer})

		if err := handle.Send("WELCOME LOBBY"); err != nil {
			s.sessions.remove(handle)
			s.trackConn(handle, false)
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.readLoop(handle)
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

func (s *Server) trackConn(c *connHandle, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) readLoop(c *connHandle) {
	for {
		body, err := c.recv()
		if err != nil {
			s.disconnects <- disconnectEvent{conn: c}
			return
		}
		s.commands <- clientCommand{conn: c, body: body}
	}
}

func (s *Server) dispatchLoop(done <-chan struct{}) {
	for {
		select {
		case cmd := <-s.commands:
			s.handleCommand(cmd.conn, cmd.body)
		case ev := <-s.disconnects:
			s.handleDisconnect(ev.conn)
		case <-done:
			return
		}
	}
}

func (s *Server) publish(kind string, fields map[string]interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(monitor.Event{Type: kind, Timestamp: time.Now(), Fields: fields})
}

// handleDisconnect is the Go analogue of lobby_server.cpp's "client
// gone" branch: an authenticated client that drops mid-session gets its
// online flag cleared and is withdrawn from whatever room or spectate
// slot it held, exactly as on an explicit LOGOUT.
func (s *Server) handleDisconnect(c *connHandle) {
	sess := s.sessions.snapshot(c)
	if sess.authed {
		s.db.Send("User setOnline username=" + sess.username + " online=0")
		if sess.roomID != 0 {
			s.db.Send(fmt.Sprintf("Room leave roomId=%d user=%s", sess.roomID, sess.username))
		}
		if sess.spectateRoomID != 0 {
			s.db.Send(fmt.Sprintf("Room unspectate roomId=%d user=%s", sess.spectateRoomID, sess.username))
		}
	}

	s.logger.WithField("peer", c.peer).WithField("user", sess.username).Info("client disconnected")
	s.publish("CLIENT_DISCONNECTED", map[string]interface{}{"peer": c.peer, "user": sess.username})

	c.Close()
	s.sessions.remove(c)
	s.trackConn(c, false)
}

// handleCommand is the single switch that lobby_server.cpp implements
// as one big if/else chain over the first token of the request line.
func (s *Server) handleCommand(c *connHandle, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd := fields[0]
	rest := fields[1:]
	sess := s.sessions.snapshot(c)

	switch cmd {
	case "REGISTER":
		s.handleRegister(c, rest)
	case "LOGIN":
		s.handleLogin(c, rest)
	case "LOGOUT":
		s.handleLogout(c, sess)
	case "LIST_ONLINE":
		s.forwardDB(c, "User listOnline")
	case "CREATE_ROOM":
		s.handleCreateRoom(c, sess, rest)
	case "LIST_ROOMS":
		s.forwardDB(c, "Room list")
	case "JOIN_ROOM":
		s.handleJoinRoom(c, sess, rest)
	case "LEAVE_ROOM":
		s.handleLeaveRoom(c, sess)
	case "SPECTATE":
		s.handleSpectate(c, sess, rest)
	case "UNSPECTATE":
		s.handleUnspectate(c, sess)
	case "INVITE":
		s.handleInvite(c, sess, rest)
	case "LIST_INVITES":
		s.handleListInvites(c, sess)
	case "START_GAME":
		s.handleStartGame(c, sess)
	default:
		c.Send("ERR unknown_command")
	}
}

func requireAuthed(c *connHandle, sess session) bool {
	if !sess.authed {
		c.Send("ERR not_logged_in")
		return false
	}
	return true
}

// forwardDB runs cmd against the State Service and relays whatever comes
// back verbatim, or "ERR db" on a transport failure — grounded on
// LIST_ONLINE/LIST_ROOMS in lobby_server.cpp, which do exactly this.
func (s *Server) forwardDB(c *connHandle, cmd string) {
	reply, err := s.db.Send(cmd)
	if err != nil {
		c.Send("ERR db")
		return
	}
	c.Send(reply)
}

func (s *Server) handleRegister(c *connHandle, args []string) {
	u, p := argAt(args, 0), argAt(args, 1)
	reply, err := s.db.Send("User create username=" + u + " pass=" + p)
	if err != nil {
		c.Send("ERR db")
		s.logger.WithField("user", u).Info("register failed: state service unreachable")
		return
	}
	c.Send(reply)
	if strings.HasPrefix(reply, "OK") {
		s.publish("REGISTER_OK", map[string]interface{}{"user": u})
	} else {
		s.publish("REGISTER_FAIL", map[string]interface{}{"user": u, "reason": reply})
	}
}

func (s *Server) handleLogin(c *connHandle, args []string) {
	u, p := argAt(args, 0), argAt(args, 1)

	reply, err := s.db.Send("User read username=" + u)
	if err != nil {
		c.Send("ERR db")
		return
	}
	kv := parseOKReply(reply)

	alreadyOnline := kv["online"] == "1"
	if !alreadyOnline {
		alreadyOnline = s.sessions.isOnlineLocally(u)
	}
	if alreadyOnline {
		c.Send("ERR already_online")
		s.publish("LOGIN_REJECT", map[string]interface{}{"user": u, "reason": "already_online"})
		return
	}

	if kv["pass"] != p {
		c.Send("ERR bad_credentials")
		s.publish("LOGIN_REJECT", map[string]interface{}{"user": u, "reason": "bad_credentials"})
		return
	}

	acquire, err := s.db.Send("User compareSetOnline username=" + u + " expect=0 value=1")
	if err != nil {
		c.Send("ERR db")
		return
	}
	if !strings.HasPrefix(acquire, "OK") {
		if strings.HasPrefix(acquire, "ERR mismatch") {
			c.Send("ERR already_online")
			s.publish("LOGIN_REJECT", map[string]interface{}{"user": u, "reason": "already_online_race"})
		} else {
			c.Send(acquire)
			s.publish("LOGIN_REJECT", map[string]interface{}{"user": u, "reason": acquire})
		}
		return
	}

	s.sessions.mutate(c, func(sess *session) {
		sess.username = u
		sess.authed = true
	})
	c.Send("OK LOGIN")
	s.publish("LOGIN_OK", map[string]interface{}{"user": u})
}

func (s *Server) handleLogout(c *connHandle, sess session) {
	if !requireAuthed(c, sess) {
		return
	}
	s.db.Send("User setOnline username=" + sess.username + " online=0")
	if sess.roomID != 0 {
		s.db.Send(fmt.Sprintf("Room leave roomId=%d user=%s", sess.roomID, sess.username))
	}
	if sess.spectateRoomID != 0 {
		s.db.Send(fmt.Sprintf("Room unspectate roomId=%d user=%s", sess.spectateRoomID, sess.username))
	}

	s.sessions.mutate(c, func(sess *session) {
		sess.authed = false
		sess.username = ""
		sess.roomID = 0
		sess.spectateRoomID = 0
	})
	c.Send("OK LOGOUT")
	s.publish("LOGOUT", map[string]interface{}{"user": sess.username})
}

func (s *Server) handleCreateRoom(c *connHandle, sess session, args []string) {
	if !requireAuthed(c, sess) {
		return
	}
	name := argAt(args, 0)
	visibility := argAt(args, 1)
	if visibility == "" {
		visibility = "public"
	}

	reply, err := s.db.Send("Room create name=" + name + " host=" + sess.username + " visibility=" + visibility)
	if err != nil {
		c.Send("ERR db")
		s.publish("ROOM_CREATE_FAIL", map[string]interface{}{"host": sess.username, "reason": "db_error"})
		return
	}
	kv := parseOKReply(reply)
	ridStr, ok := kv["roomId"]
	if !ok {
		c.Send("ERR create_failed")
		s.publish("ROOM_CREATE_FAIL", map[string]interface{}{"host": sess.username, "reason": "bad_reply"})
		return
	}
	rid, _ := strconv.Atoi(ridStr)
	s.sessions.mutate(c, func(sess *session) {
		sess.roomID = rid
		sess.spectateRoomID = 0
	})
	c.Send(reply)
	s.publish("ROOM_CREATED", map[string]interface{}{"room": rid, "host": sess.username, "visibility": visibility})
}

func (s *Server) handleJoinRoom(c *connHandle, sess session, args []string) {
	if !requireAuthed(c, sess) {
		return
	}
	rid, ok := parseIntArg(args, 0)
	if !ok {
		c.Send("ERR invalid_roomId")
		return
	}

	reply, err := s.db.Send(fmt.Sprintf("Room join roomId=%d user=%s", rid, sess.username))
	if err != nil {
		c.Send("ERR db")
		s.publish("ROOM_JOIN_FAIL", map[string]interface{}{"room": rid, "user": sess.username, "reason": "db_error"})
		return
	}
	if !strings.HasPrefix(reply, "OK") {
		c.Send(reply)
		s.publish("ROOM_JOIN_FAIL", map[string]interface{}{"room": rid, "user": sess.username, "reason": reply})
		return
	}

	s.sessions.mutate(c, func(sess *session) {
		sess.roomID = rid
		sess.spectateRoomID = 0
	})
	c.Send("OK joined")
	s.publish("ROOM_JOINED", map[string]interface{}{"room": rid, "user": sess.username})
}

func (s *Server) handleLeaveRoom(c *connHandle, sess session) {
	if !requireAuthed(c, sess) {
		return
	}
	if sess.roomID == 0 {
		c.Send("ERR not_in_room")
		return
	}

	reply, err := s.db.Send(fmt.Sprintf("Room leave roomId=%d user=%s", sess.roomID, sess.username))
	if err != nil {
		c.Send("ERR db")
		s.publish("ROOM_LEAVE_FAIL", map[string]interface{}{"user": sess.username, "room": sess.roomID, "reason": "db_error"})
		return
	}
	if strings.HasPrefix(reply, "OK") {
		s.sessions.mutate(c, func(sess *session) {
			sess.roomID = 0
			sess.spectateRoomID = 0
		})
		c.Send(reply)
		s.publish("ROOM_LEFT", map[string]interface{}{"user": sess.username, "room": sess.roomID})
		return
	}
	c.Send(reply)
	s.publish("ROOM_LEAVE_FAIL", map[string]interface{}{"user": sess.username, "room": sess.roomID, "reason": reply})
}

func (s *Server) handleSpectate(c *connHandle, sess session, args []string) {
	if !requireAuthed(c, sess) {
		return
	}
	rid, ok := parseIntArg(args, 0)
	if !ok || rid == 0 {
		c.Send("ERR invalid_room")
		return
	}
	if sess.roomID != 0 {
		c.Send("ERR must_leave_room")
		return
	}
	if sess.spectateRoomID == rid {
		c.Send("ERR already_spectating")
		return
	}

	reply, err := s.db.Send(fmt.Sprintf("Room spectate roomId=%d user=%s", rid, sess.username))
	if err != nil {
		c.Send("ERR db")
		s.publish("SPECTATE_FAIL", map[string]interface{}{"user": sess.username, "room": rid, "reason": "db_error"})
		return
	}
	if !strings.HasPrefix(reply, "OK") {
		c.Send(reply)
		s.publish("SPECTATE_FAIL", map[string]interface{}{"user": sess.username, "room": rid, "reason": reply})
		return
	}

	port, token, ok := s.games.Get(rid)
	if !ok {
		c.Send("ERR no_active_game")
		s.db.Send(fmt.Sprintf("Room unspectate roomId=%d user=%s", rid, sess.username))
		s.publish("SPECTATE_FAIL", map[string]interface{}{"user": sess.username, "room": rid, "reason": "no_active_game"})
		return
	}

	s.sessions.mutate(c, func(sess *session) {
		sess.spectateRoomID = rid
	})
	c.Send("OK SPECTATE")
	c.Send(fmt.Sprintf("SPECTATE_READY port=%d token=%s role=SPEC", port, token))
	s.publish("SPECTATE_READY", map[string]interface{}{"user": sess.username, "room": rid, "port": port})
}

func (s *Server) handleUnspectate(c *connHandle, sess session) {
	if !requireAuthed(c, sess) {
		return
	}
	if sess.spectateRoomID == 0 {
		c.Send("ERR not_spectating")
		return
	}

	reply, err := s.db.Send(fmt.Sprintf("Room unspectate roomId=%d user=%s", sess.spectateRoomID, sess.username))
	if err != nil {
		c.Send("ERR db")
		s.publish("UNSPECTATE_FAIL", map[string]interface{}{"user": sess.username, "room": sess.spectateRoomID, "reason": "db_error"})
		return
	}
	if strings.HasPrefix(reply, "OK") {
		s.sessions.mutate(c, func(sess *session) {
			sess.spectateRoomID = 0
		})
		c.Send("OK UNSPECTATE")
		s.publish("UNSPECTATE", map[string]interface{}{"user": sess.username, "room": sess.spectateRoomID})
		return
	}
	c.Send(reply)
	s.publish("UNSPECTATE_FAIL", map[string]interface{}{"user": sess.username, "room": sess.spectateRoomID, "reason": reply})
}

func (s *Server) handleInvite(c *connHandle, sess session, args []string) {
	if !requireAuthed(c, sess) {
		return
	}
	target := argAt(args, 0)
	rid := sess.roomID
	if rid == 0 {
		c.Send("ERR not_in_room")
		return
	}

	reply, err := s.db.Send(fmt.Sprintf("Room invite roomId=%d user=%s host=%s", rid, target, sess.username))
	if err != nil {
		c.Send("ERR db")
		s.publish("ROOM_INVITE_FAIL", map[string]interface{}{"room": rid, "from": sess.username, "to": target, "reason": "db_error"})
		return
	}
	c.Send(reply)
	if !strings.HasPrefix(reply, "OK") {
		s.publish("ROOM_INVITE_FAIL", map[string]interface{}{"room": rid, "from": sess.username, "to": target, "reason": reply})
		return
	}

	s.publish("ROOM_INVITE", map[string]interface{}{"room": rid, "from": sess.username, "to": target})
	roomInfo, err := s.db.Send(fmt.Sprintf("Room get roomId=%d", rid))
	if err != nil || !strings.HasPrefix(roomInfo, "OK") {
		return
	}
	info := parseOKReply(roomInfo)
	targetConn := s.sessions.findByUsername(target)
	if targetConn != nil {
		targetConn.Send(fmt.Sprintf("ROOM_INVITE roomId=%d name=%s host=%s", rid, info["name"], sess.username))
	}
}

func (s *Server) handleListInvites(c *connHandle, sess session) {
	if !requireAuthed(c, sess) {
		return
	}
	s.forwardDB(c, "Room listInvites user="+sess.username)
}

// handleStartGame is the Go analogue of the START_GAME branch in
// lobby_server.cpp: validate the room, open a listener for the Match
// Runtime, mint a capability token, flip the room to playing, notify
// both players, and hand the listener off to a goroutine running the
// match — the Go stand-in for the original's detached std::thread.
func (s *Server) handleStartGame(c *connHandle, sess session) {
	if !requireAuthed(c, sess) {
		return
	}
	rid := sess.roomID
	if rid == 0 {
		c.Send("ERR not_in_room")
		return
	}

	roomDetails, err := s.db.Send(fmt.Sprintf("Room get roomId=%d", rid))
	if err != nil || !strings.HasPrefix(roomDetails, "OK") {
		c.Send("ERR no_such_room")
		return
	}
	info := parseOKReply(roomDetails)
	if info["host"] != sess.username {
		c.Send("ERR not_host")
		return
	}
	p1, p2 := info["p1"], info["p2"]
	if p1 == "" || p2 == "" {
		c.Send("ERR need_2_players")
		return
	}
	if info["status"] != "idle" {
		c.Send("ERR already_playing")
		return
	}

	ln, gport, err := s.ports.openListener()
	if err != nil {
		c.Send("ERR cannot_start_game_port")
		s.publish("GAME_START_FAIL", map[string]interface{}{"room": rid, "reason": "listen_error"})
		return
	}

	token, err := s.tokens.Issue(rid, p1, p2)
	if err != nil {
		ln.Close()
		c.Send("ERR cannot_start_game_token")
		return
	}

	s.db.Send(fmt.Sprintf("Room setStatus roomId=%d status=playing", rid))
	s.db.Send(fmt.Sprintf("Room setToken roomId=%d token=%s", rid, token))

	s.games.Set(rid, gport, token)

	readyMsg := fmt.Sprintf("GAME_READY port=%d token=%s", gport, token)
	if p1Conn := s.sessions.findByUsername(p1); p1Conn != nil {
		p1Conn.Send(readyMsg)
	}
	if p2Conn := s.sessions.findByUsername(p2); p2Conn != nil {
		p2Conn.Send(readyMsg)
	}
	s.publish("GAME_STARTED", map[string]interface{}{"room": rid, "port": gport, "p1": p1, "p2": p2})

	s.launchMatch(ln, rid, p1, p2, token)
}

// launchMatch runs a Match Runtime on its own goroutine; its completion
// callback is the Go analogue of lobby_server.cpp's finish_cb closure.
func (s *Server) launchMatch(ln net.Listener, roomID int, p1, p2, token string) {
	onFinish := func(result match.Result) {
		s.db.Send(fmt.Sprintf("GameLog create roomId=%d user1=%s user2=%s score1=%d score2=%d",
			roomID, result.User1, result.User2, result.Score1, result.Score2))
		s.db.Send(fmt.Sprintf("Room setStatus roomId=%d status=idle", roomID))
		s.games.Delete(roomID)
		s.hook.Notify(matchResultPayload{RoomID: roomID, User1: result.User1, Score1: result.Score1, User2: result.User2, Score2: result.Score2})
		s.publish("GAME_FINISHED", map[string]interface{}{"room": roomID, "user1": result.User1, "score1": result.Score1, "user2": result.User2, "score2": result.Score2})
	}

	runtime := match.NewRuntime(match.Admission{RoomID: roomID, P1: p1, P2: p2, Token: token}, onFinish, s.logger)
	go runtime.Run(ln)
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseIntArg(args []string, i int) (int, bool) {
	s := argAt(args, i)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseOKReply mirrors parse_ok_reply in lobby_server.cpp: split an "OK
// k=v k=v..." reply into a map, or an empty map for anything not
// starting with "OK".
func parseOKReply(reply string) map[string]string {
	kv := make(map[string]string)
	if !strings.HasPrefix(reply, "OK") {
		return kv
	}
	fields := strings.Fields(reply)
	for _, f := range fields[1:] {
		idx := strings.IndexByte(f, '=')
		if idx < 0 {
			continue
		}
		kv[f[:idx]] = f[idx+1:]
	}
	return kv
}
