package stateservice

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// healthResponse and statsResponse are the admin surface's JSON bodies,
// grounded on the InfoResponse/CheckinResponse shape the teacher's
// common/rest.go used for its own operator-facing endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

type statsResponse struct {
	Users        int `json:"users"`
	OnlineUsers  int `json:"online_users"`
	Rooms        int `json:"rooms"`
	PlayingRooms int `json:"playing_rooms"`
	GameLogs     int `json:"game_logs"`
}

// AdminRouter builds the mux.Router serving /healthz and /stats for
// operator polling, separate from the raw command port.
func AdminRouter(store *Store) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/stats", func(w http.ResponseWriter, req *http.Request) {
		st := store.Stats()
		writeJSON(w, http.StatusOK, statsResponse{
			Users:        st.Users,
			OnlineUsers:  st.OnlineUsers,
			Rooms:        st.Rooms,
			PlayingRooms: st.PlayingRooms,
			GameLogs:     st.GameLogs,
		})
	}).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
