package stateservice

import (
	"fmt"
	"strconv"
	"strings"
)

// Dispatch parses one request line in the "<Collection> <Action>
// k=v..." grammar and applies it to store, returning the exact wire
// reply body ("OK [payload]" or "ERR <kind>"). This is the Go
// translation of db_server.cpp's big if/else command chain, kept as one
// switch over "coll action" so the grammar stays readable top to
// bottom the way the original is.
func Dispatch(store *Store, request string) string {
	fields := strings.Fields(request)
	if len(fields) < 2 {
		return errReply(ErrUnknownCommand)
	}
	coll, action := fields[0], fields[1]
	kv := parseKV(fields[2:])

	switch coll + " " + action {
	case "User create":
		return dispatchUserCreate(store, kv)
	case "User read":
		return dispatchUserRead(store, kv)
	case "User compareSetOnline":
		return dispatchUserCompareSetOnline(store, kv)
	case "User setOnline":
		return dispatchUserSetOnline(store, kv)
	case "User listOnline":
		return dispatchUserListOnline(store)
	case "Room create":
		return dispatchRoomCreate(store, kv)
	case "Room join":
		return dispatchRoomJoin(store, kv)
	case "Room list":
		return dispatchRoomList(store)
	case "Room get":
		return dispatchRoomGet(store, kv)
	case "Room setStatus":
		return dispatchRoomSetStatus(store, kv)
	case "Room setToken":
		return dispatchRoomSetToken(store, kv)
	case "Room leave":
		return dispatchRoomLeave(store, kv)
	case "Room invite":
		return dispatchRoomInvite(store, kv)
	case "Room spectate":
		return dispatchRoomSpectate(store, kv)
	case "Room unspectate":
		return dispatchRoomUnspectate(store, kv)
	case "Room listInvites":
		return dispatchRoomListInvites(store, kv)
	case "GameLog create":
		return dispatchGameLogCreate(store, kv)
	case "GameLog list":
		return dispatchGameLogList(store)
	default:
		return errReply(ErrUnknownCommand)
	}
}

// parseKV mirrors parse_kv in db_server.cpp: split each token on the
// first '=', silently drop tokens without one.
func parseKV(tokens []string) map[string]string {
	kv := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		idx := strings.IndexByte(tok, '=')
		if idx < 0 {
			continue
		}
		kv[tok[:idx]] = tok[idx+1:]
	}
	return kv
}

// parseIntField mirrors parse_int_field: a missing or empty key, or a
// value that doesn't fully parse as a base-10 integer, is a failure.
// allowNegative mirrors the C++ default-false parameter.
func parseIntField(kv map[string]string, key string, allowNegative bool) (int, bool) {
	v, ok := kv[key]
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	if !allowNegative && n < 0 {
		return 0, false
	}
	return n, true
}

func okReply(payload string) string {
	if payload == "" {
		return "OK"
	}
	return "OK " + payload
}

func errReply(err error) string {
	return "ERR " + err.Error()
}

func dispatchUserCreate(store *Store, kv map[string]string) string {
	username := kv["username"]
	if err := store.CreateUser(username, kv["pass"]); err != nil {
		return errReply(err)
	}
	return okReply("user=" + username)
}

func dispatchUserRead(store *Store, kv map[string]string) string {
	u, err := store.ReadUser(kv["username"])
	if err != nil {
		return errReply(err)
	}
	return okReply(fmt.Sprintf("username=%s pass=%s online=%s", u.Username, u.Pass, boolFlag(u.Online)))
}

func dispatchUserCompareSetOnline(store *Store, kv map[string]string) string {
	username, ok := kv["username"]
	if !ok || username == "" {
		return errReply(ErrMissingUsername)
	}
	expect, ok := parseBoolField(kv, "expect")
	if !ok {
		return errReply(ErrInvalidExpect)
	}
	value, ok := parseBoolField(kv, "value")
	if !ok {
		return errReply(ErrInvalidValue)
	}
	if err := store.CompareSetOnline(username, expect, value); err != nil {
		return errReply(err)
	}
	return okReply("")
}

func dispatchUserSetOnline(store *Store, kv map[string]string) string {
	username := kv["username"]
	if err := store.SetOnline(username, kv["online"] == "1"); err != nil {
		return errReply(err)
	}
	return okReply("")
}

func dispatchUserListOnline(store *Store) string {
	return okReply(strings.Join(store.ListOnline(), ","))
}

func dispatchRoomCreate(store *Store, kv map[string]string) string {
	visibility := kv["visibility"]
	if visibility == "" {
		visibility = "public"
	}
	visibility = strings.ToLower(visibility)
	room := store.CreateRoom(kv["name"], kv["host"], visibility)
	return okReply("roomId=" + strconv.Itoa(room.ID))
}

func dispatchRoomJoin(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	user, ok := kv["user"]
	if !ok || user == "" {
		return errReply(ErrMissingUser)
	}
	if err := store.JoinRoom(rid, user); err != nil {
		return errReply(err)
	}
	return okReply("")
}

// dispatchRoomList renders "ID:Name:Host:Status:Visibility:P1:P2;" per
// room, matching db_server.cpp's Room.list format exactly.
func dispatchRoomList(store *Store) string {
	var sb strings.Builder
	for _, r := range store.ListPublicRooms() {
		fmt.Fprintf(&sb, "%d:%s:%s:%s:%s:%s:%s;", r.ID, r.Name, r.Host, r.Status, r.Visibility, r.P1, r.P2)
	}
	return okReply(sb.String())
}

func dispatchRoomGet(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	r, err := store.GetRoom(rid)
	if err != nil {
		return errReply(err)
	}
	return okReply(fmt.Sprintf("id=%d name=%s host=%s status=%s p1=%s p2=%s token=%s", r.ID, r.Name, r.Host, r.Status, r.P1, r.P2, r.Token))
}

func dispatchRoomSetStatus(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	status, ok := kv["status"]
	if !ok || status == "" {
		return errReply(ErrMissingStatus)
	}
	if err := store.SetRoomStatus(rid, status); err != nil {
		return errReply(err)
	}
	return okReply("")
}

func dispatchRoomSetToken(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	token, ok := kv["token"]
	if !ok || token == "" {
		return errReply(ErrMissingToken)
	}
	if err := store.SetRoomToken(rid, token); err != nil {
		return errReply(err)
	}
	return okReply("")
}

func dispatchRoomLeave(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	user, ok := kv["user"]
	if !ok || user == "" {
		return errReply(ErrMissingUser)
	}
	closed, err := store.LeaveRoom(rid, user)
	if err != nil {
		return errReply(err)
	}
	if closed {
		return okReply("closed")
	}
	return okReply("")
}

func dispatchRoomInvite(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	host, ok := kv["host"]
	if !ok || host == "" {
		return errReply(ErrMissingHost)
	}
	user, ok := kv["user"]
	if !ok || user == "" {
		return errReply(ErrMissingUser)
	}
	if err := store.InviteToRoom(rid, user, host); err != nil {
		return errReply(err)
	}
	return okReply("invited=" + user)
}

func dispatchRoomSpectate(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	user, ok := kv["user"]
	if !ok || user == "" {
		return errReply(ErrMissingUser)
	}
	if err := store.SpectateRoom(rid, user); err != nil {
		return errReply(err)
	}
	return okReply("")
}

func dispatchRoomUnspectate(store *Store, kv map[string]string) string {
	rid, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	user, ok := kv["user"]
	if !ok || user == "" {
		return errReply(ErrMissingUser)
	}
	if err := store.UnspectateRoom(rid, user); err != nil {
		return errReply(err)
	}
	return okReply("")
}

func dispatchRoomListInvites(store *Store, kv map[string]string) string {
	user, ok := kv["user"]
	if !ok || user == "" {
		return errReply(ErrMissingUser)
	}
	var sb strings.Builder
	for _, r := range store.ListInvites(user) {
		fmt.Fprintf(&sb, "%d:%s:%s;", r.ID, r.Name, r.Host)
	}
	return okReply(sb.String())
}

func dispatchGameLogCreate(store *Store, kv map[string]string) string {
	roomID, ok := parseIntField(kv, "roomId", false)
	if !ok {
		return errReply(ErrInvalidRoomID)
	}
	score1, ok := parseIntField(kv, "score1", false)
	if !ok {
		return errReply(ErrInvalidScore1)
	}
	score2, ok := parseIntField(kv, "score2", false)
	if !ok {
		return errReply(ErrInvalidScore2)
	}
	user1, ok1 := kv["user1"]
	user2, ok2 := kv["user2"]
	if !ok1 || user1 == "" || !ok2 || user2 == "" {
		return errReply(ErrMissingUser)
	}
	g := store.CreateGameLog(roomID, user1, user2, score1, score2)
	return okReply("gameId=" + strconv.Itoa(g.ID))
}

func dispatchGameLogList(store *Store) string {
	var sb strings.Builder
	for _, g := range store.ListGameLogs() {
		fmt.Fprintf(&sb, "id=%d room=%d p1=%s s1=%d p2=%s s2=%d;", g.ID, g.RoomID, g.User1, g.Score1, g.User2, g.Score2)
	}
	return okReply(sb.String())
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// parseBoolField accepts only "0" or "1", matching the expect/value
// validation in db_server.cpp's compareSetOnline handler.
func parseBoolField(kv map[string]string, key string) (bool, bool) {
	n, ok := parseIntField(kv, key, false)
	if !ok || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}
