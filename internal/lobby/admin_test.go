package lobby

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoseat/arcade/internal/catalog"
	"github.com/twoseat/arcade/internal/monitor"
)

func TestAdminHealthz(t *testing.T) {
	logger := logrus.NewEntry(logrus.New())
	srv := NewServer(nil, logger, monitor.NewHub(), Config{Catalog: catalog.Default()})
	router := AdminRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminStatsReflectsLiveState(t *testing.T) {
	logger := logrus.NewEntry(logrus.New())
	srv := NewServer(nil, logger, monitor.NewHub(), Config{Catalog: catalog.Default()})

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()
	srv.sessions.add(newConnHandle(serverSide, logger))
	srv.games.Set(1, 15001, "tok")

	router := AdminRouter(srv)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected_clients":1,"live_matches":1}`, rec.Body.String())
}
