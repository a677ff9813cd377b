package lobby

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// healthResponse and statsResponse are the Lobby's admin surface's JSON
// bodies. healthResponse has the same shape as the State Service's
// admin.go; statsResponse reports Lobby-side counts instead.
type healthResponse struct {
	Status string `json:"status"`
}

type statsResponse struct {
	ConnectedClients int `json:"connected_clients"`
	LiveMatches      int `json:"live_matches"`
}

// AdminRouter builds the mux.Router serving /healthz, /stats, and the
// operator event feed at /ws/events, separate from the raw client
// command port.
func AdminRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, statsResponse{
			ConnectedClients: s.sessions.Len(),
			LiveMatches:      s.games.Len(),
		})
	}).Methods(http.MethodGet)

	r.Handle("/ws/events", s.hub).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
