package lobby

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/twoseat/arcade/internal/catalog"
	"github.com/twoseat/arcade/internal/frame"
	"github.com/twoseat/arcade/internal/monitor"
	"github.com/twoseat/arcade/internal/netutil"
	"github.com/twoseat/arcade/internal/stateservice"
)

// LobbyTestSuite exercises the Lobby against a real State Service
// instance rather than a mock, the same way server_test.go in
// internal/stateservice exercises that package against a real listener.
type LobbyTestSuite struct {
	suite.Suite

	cancel context.CancelFunc
	ln     net.Listener
	hub    *monitor.Hub
	srv    *Server
}

func (ts *LobbyTestSuite) SetupTest() {
	ctx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel

	dbLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(ts.T(), err)
	store := stateservice.NewStore()
	dbLogger := logrus.NewEntry(logrus.New())
	dbSrv := stateservice.NewServer(store, dbLogger)
	go dbSrv.Run(ctx, dbLn)

	logger := logrus.NewEntry(logrus.New())
	dbClient, err := DialDBClient("127.0.0.1", netutil.Port(dbLn), logger)
	require.NoError(ts.T(), err)
	go dbClient.Run(ctx)

	hub := monitor.NewHub()
	stop := make(chan struct{})
	go hub.Run(stop)
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	ts.hub = hub

	srv := NewServer(dbClient, logger, hub, Config{
		TokenSecret: "test-secret",
		MatchBindIP: "127.0.0.1",
		Catalog:     catalog.Default(),
	})
	ts.srv = srv

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(ts.T(), err)
	ts.ln = ln
	go srv.Run(ctx, ln)
}

func (ts *LobbyTestSuite) TearDownTest() {
	ts.cancel()
}

func (ts *LobbyTestSuite) dial() net.Conn {
	conn, err := net.Dial("tcp", ts.ln.Addr().String())
	require.NoError(ts.T(), err)
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	welcome, err := frame.Recv(conn)
	require.NoError(ts.T(), err)
	require.Equal(ts.T(), "WELCOME LOBBY", string(welcome))
	return conn
}

func (ts *LobbyTestSuite) sendRecv(conn net.Conn, body string) string {
	require.NoError(ts.T(), frame.Send(conn, []byte(body)))
	resp, err := frame.Recv(conn)
	require.NoError(ts.T(), err)
	return string(resp)
}

func (ts *LobbyTestSuite) registerAndLogin(conn net.Conn, username, password string) {
	ts.Equal("OK user="+username, ts.sendRecv(conn, "REGISTER "+username+" "+password))
	ts.Equal("OK LOGIN", ts.sendRecv(conn, "LOGIN "+username+" "+password))
}

func (ts *LobbyTestSuite) TestRegisterLoginRejectsASecondConcurrentLogin() {
	a := ts.dial()
	defer a.Close()
	ts.registerAndLogin(a, "alice", "hunter2")

	b := ts.dial()
	defer b.Close()

	resp := ts.sendRecv(b, "LOGIN alice hunter2")
	ts.Equal("ERR already_online", resp)
}

func (ts *LobbyTestSuite) TestCreateJoinAndStartGameHandsOutAMatchToken() {
	alice := ts.dial()
	defer alice.Close()
	ts.registerAndLogin(alice, "alice", "pw1")

	bob := ts.dial()
	defer bob.Close()
	ts.registerAndLogin(bob, "bob", "pw2")

	createResp := ts.sendRecv(alice, "CREATE_ROOM arena public")
	ts.True(strings.HasPrefix(createResp, "OK roomId="))
	roomID := strings.TrimPrefix(createResp, "OK roomId=")

	ts.Equal("OK joined", ts.sendRecv(bob, "JOIN_ROOM "+roomID))

	require.NoError(ts.T(), frame.Send(alice, []byte("START_GAME")))

	aliceReady, err := frame.Recv(alice)
	require.NoError(ts.T(), err)
	ts.True(strings.HasPrefix(string(aliceReady), "GAME_READY port="))

	bobReady, err := frame.Recv(bob)
	require.NoError(ts.T(), err)
	ts.Equal(string(aliceReady), string(bobReady))

	port, token := parseGameReady(string(aliceReady))
	ts.NotZero(port)
	ts.NotEmpty(token)

	matchConn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%s", port))
	require.NoError(ts.T(), err)
	defer matchConn.Close()
	matchConn.SetDeadline(time.Now().Add(5 * time.Second))

	require.NoError(ts.T(), frame.Send(matchConn, []byte("HELLO username=alice token="+token)))
	welcome, err := frame.Recv(matchConn)
	require.NoError(ts.T(), err)
	ts.True(strings.HasPrefix(string(welcome), "WELCOME role=P1"))
}

func parseGameReady(msg string) (port string, token string) {
	for _, tok := range strings.Fields(msg) {
		if strings.HasPrefix(tok, "port=") {
			port = strings.TrimPrefix(tok, "port=")
		} else if strings.HasPrefix(tok, "token=") {
			token = strings.TrimPrefix(tok, "token=")
		}
	}
	return
}

func TestLobbySuite(t *testing.T) {
	suite.Run(t, new(LobbyTestSuite))
}
