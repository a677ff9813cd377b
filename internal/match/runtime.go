package match

import (
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twoseat/arcade/internal/frame"
	"github.com/twoseat/arcade/internal/logging"
)

// tickInterval is the server-side gravity step, matching the 500ms poll
// timeout used for ticking in run_tetris_server_on_fd. A var rather than
// a const so tests can shrink it.
var tickInterval = 500 * time.Millisecond

// Admission is what the Lobby hands a freshly-launched Match Runtime:
// which room this is, who the two players are, and the capability token
// clients must present in HELLO to be admitted as one of them.
type Admission struct {
	RoomID int
	P1     string
	P2     string
	Token  string
}

// Result is what a Runtime reports back to its caller once the match
// ends, the Go analogue of the room_id/user1/score1/user2/score2 tuple
// passed to GameFinishedCallback.
type Result struct {
	User1  string
	Score1 int
	User2  string
	Score2 int
}

type inboundMsg struct {
	conn net.Conn
	body string
}

type disconnectMsg struct {
	conn net.Conn
}

type playerSlot struct {
	name       string
	conn       net.Conn
	authed     bool
	engine     GameEngine
	forcedOver bool
}

func (p *playerSlot) isOver() bool {
	return p.engine == nil || p.forcedOver || p.engine.IsGameOver()
}

func (p *playerSlot) score() int {
	if p.engine == nil {
		return 0
	}
	return p.engine.Score()
}

// Runtime owns one admitted match end to end: accepting the two players'
// (and any spectators') connections, gating entry on Admission.Token,
// running the gravity tick, and broadcasting snapshots until someone's
// board tops out. It is the Go analogue of run_tetris_server_on_fd.
type Runtime struct {
	admission Admission
	onFinish  func(Result)
	logger    *log.Entry
}

// NewRuntime constructs a Runtime for one admitted match. onFinish is
// invoked exactly once, after every client connection has been closed;
// the listener is closed when Run returns, after onFinish.
func NewRuntime(admission Admission, onFinish func(Result), logger *log.Entry) *Runtime {
	return &Runtime{admission: admission, onFinish: onFinish, logger: logger}
}

// Run drives the match to completion on ln, which it closes before
// returning. It blocks until the match ends, so callers run it on its
// own goroutine.
func (r *Runtime) Run(ln net.Listener) {
	defer ln.Close()

	seed := time.Now().UnixNano()

	players := [2]*playerSlot{
		{name: r.admission.P1},
		{name: r.admission.P2},
	}
	connIndex := map[net.Conn]int{}
	spectators := map[net.Conn]string{}
	var allConns []net.Conn

	newConns := make(chan net.Conn)
	commands := make(chan inboundMsg)
	disconnects := make(chan disconnectMsg)

	go r.acceptLoop(ln, newConns)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	gameStarted := false
	authedPlayers := 0
	finished := false

	for !finished {
		select {
		case conn := <-newConns:
			allConns = append(allConns, conn)
			go r.readLoop(conn, commands, disconnects)

		case msg := <-commands:
			cmd, rest := splitCommand(msg.body)
			switch cmd {
			case "HELLO":
				r.handleHello(msg.conn, rest, seed, &players, connIndex, spectators, &authedPlayers)
			case "INPUT":
				if gameStarted {
					if idx, ok := connIndex[msg.conn]; ok && players[idx].engine != nil {
						players[idx].engine.HandleInput(strings.TrimSpace(rest))
					}
				}
			}

		case d := <-disconnects:
			r.handleDisconnect(d.conn, &players, connIndex, spectators, &authedPlayers, gameStarted)

		case <-ticker.C:
			if gameStarted {
				finished = r.tick(players, connIndex, spectators)
			}
		}

		if !gameStarted && authedPlayers == 2 {
			players[0].engine = NewTetrisEngine(seed)
			players[1].engine = NewTetrisEngine(seed)
			gameStarted = true
			logging.Checkpoint(r.logger, "MATCH_STARTED", log.Fields{"room": r.admission.RoomID, "seed": seed})
		}
	}

	logging.Checkpoint(r.logger, "MATCH_FINISHED", log.Fields{"room": r.admission.RoomID})

	for _, conn := range allConns {
		conn.Close()
	}

	result := Result{
		User1:  players[0].name,
		Score1: players[0].score(),
		User2:  players[1].name,
		Score2: players[1].score(),
	}
	r.onFinish(result)
}

func (r *Runtime) acceptLoop(ln net.Listener, newConns chan<- net.Conn) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		newConns <- conn
	}
}

func (r *Runtime) readLoop(conn net.Conn, commands chan<- inboundMsg, disconnects chan<- disconnectMsg) {
	peer := peerDesc(conn)
	for {
		body, err := frame.Recv(conn)
		if err != nil {
			disconnects <- disconnectMsg{conn: conn}
			return
		}
		logging.Communication(r.logger, "RX", peer, string(body))
		commands <- inboundMsg{conn: conn, body: string(body)}
	}
}

func (r *Runtime) handleHello(conn net.Conn, rest string, seed int64, players *[2]*playerSlot, connIndex map[net.Conn]int, spectators map[net.Conn]string, authedPlayers *int) {
	fields := parseHelloFields(rest)
	username := fields["username"]
	token := fields["token"]
	wantsSpec := fields["role"] == "SPEC"

	if token != r.admission.Token {
		r.send(conn, "ERR invalid_player_or_token")
		logging.Checkpoint(r.logger, "HELLO_REJECTED", log.Fields{"user": orUnknown(username), "reason": "bad_token"})
		conn.Close()
		return
	}

	switch {
	case !wantsSpec && username == players[0].name && !players[0].authed:
		players[0].conn = conn
		players[0].authed = true
		connIndex[conn] = 0
		*authedPlayers++
		r.send(conn, fmt.Sprintf("WELCOME role=P1 seed=%d gravity=500 bag=7", seed))
		logging.Checkpoint(r.logger, "HELLO_ACCEPTED", log.Fields{"user": username, "role": "P1"})

	case !wantsSpec && username == players[1].name && !players[1].authed:
		players[1].conn = conn
		players[1].authed = true
		connIndex[conn] = 1
		*authedPlayers++
		r.send(conn, fmt.Sprintf("WELCOME role=P2 seed=%d gravity=500 bag=7", seed))
		logging.Checkpoint(r.logger, "HELLO_ACCEPTED", log.Fields{"user": username, "role": "P2"})

	default:
		spectators[conn] = username
		r.send(conn, fmt.Sprintf("WELCOME role=SPEC seed=%d gravity=500 bag=7", seed))
		logging.Checkpoint(r.logger, "HELLO_ACCEPTED", log.Fields{"user": username, "role": "SPEC"})
	}
}

func (r *Runtime) handleDisconnect(conn net.Conn, players *[2]*playerSlot, connIndex map[net.Conn]int, spectators map[net.Conn]string, authedPlayers *int, gameStarted bool) {
	who := peerDesc(conn)
	defer conn.Close()

	if idx, ok := connIndex[conn]; ok {
		p := players[idx]
		if !gameStarted {
			p.authed = false
			if *authedPlayers > 0 {
				*authedPlayers--
			}
		} else {
			p.forcedOver = true
		}
		p.conn = nil
		delete(connIndex, conn)
		who += " player=" + p.name
	} else if name, ok := spectators[conn]; ok {
		who += " spec=" + name
		delete(spectators, conn)
	}

	logging.Checkpoint(r.logger, "CLIENT_DISCONNECTED", log.Fields{"who": who})
}

// tick advances both players' engines and broadcasts a SNAPSHOT for
// each, then reports whether the match has ended.
func (r *Runtime) tick(players [2]*playerSlot, connIndex map[net.Conn]int, spectators map[net.Conn]string) bool {
	var conns []net.Conn
	if players[0].conn != nil {
		conns = append(conns, players[0].conn)
	}
	if players[1].conn != nil {
		conns = append(conns, players[1].conn)
	}
	for conn := range spectators {
		conns = append(conns, conn)
	}

	for _, p := range players {
		if p.engine != nil {
			p.engine.Tick()
		}
	}

	for _, p := range players {
		if p.engine == nil {
			continue
		}
		gameover := "0"
		if p.isOver() {
			gameover = "1"
		}
		msg := fmt.Sprintf("SNAPSHOT user=%s score=%d %s gameover=%s board=%s",
			p.name, p.engine.Score(), p.engine.Extra(), gameover, p.engine.Board())
		r.broadcast(conns, msg)
	}

	if players[0].isOver() || players[1].isOver() {
		logging.Checkpoint(r.logger, "MATCH_ENDING", log.Fields{
			"room": r.admission.RoomID,
			"p1":   players[0].name, "p1_score": players[0].score(),
			"p2": players[1].name, "p2_score": players[1].score(),
		})
		r.broadcast(conns, fmt.Sprintf("GAME_OVER p1_score=%d p2_score=%d", players[0].score(), players[1].score()))
		return true
	}
	return false
}

func (r *Runtime) send(conn net.Conn, msg string) {
	peer := peerDesc(conn)
	logging.Communication(r.logger, "TX", peer, msg)
	if err := frame.Send(conn, []byte(msg)); err != nil {
		r.logger.WithError(err).WithField("peer", peer).Warn("match send failed")
	}
}

func (r *Runtime) broadcast(conns []net.Conn, msg string) {
	for _, conn := range conns {
		r.send(conn, msg)
	}
}

func peerDesc(conn net.Conn) string {
	return "socket " + conn.RemoteAddr().String()
}

func splitCommand(body string) (cmd, rest string) {
	body = strings.TrimSpace(body)
	idx := strings.IndexByte(body, ' ')
	if idx < 0 {
		return body, ""
	}
	return body[:idx], body[idx+1:]
}

func parseHelloFields(rest string) map[string]string {
	fields := map[string]string{}
	for _, tok := range strings.Fields(rest) {
		pos := strings.IndexByte(tok, '=')
		if pos < 0 {
			continue
		}
		fields[tok[:pos]] = tok[pos+1:]
	}
	return fields
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
