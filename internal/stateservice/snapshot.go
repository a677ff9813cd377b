package stateservice

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadSnapshot reads the text format written by SaveSnapshot, grounded on
// load_state/save_state in db_server.cpp: one line per record, fields
// quoted the way std::quoted renders them, set fields prefixed by a
// count. A missing file is not an error — it means a fresh boot with an
// empty store, same as the original treating load_state's false return
// as "start empty".
//
// Every loaded user is forced offline, matching mark_all_users_offline:
// a session token from a previous process lifetime can never carry
// forward an online flag, since the sockets behind it are gone.
func LoadSnapshot(store *Store, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stateservice: open snapshot %s: %w", path, err)
	}
	defer f.Close()

	maxRoomID := 0
	maxGameID := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields, err := splitQuotedFields(line)
		if err != nil || len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "USER":
			u, ok := parseUserLine(fields[1:])
			if !ok {
				continue
			}
			u.Online = false
			store.users[u.Username] = &u
		case "ROOM":
			r, ok := parseRoomLine(fields[1:])
			if !ok {
				continue
			}
			store.rooms[r.ID] = r
			if r.ID > maxRoomID {
				maxRoomID = r.ID
			}
		case "LOG":
			g, ok := parseLogLine(fields[1:])
			if !ok {
				continue
			}
			store.gameLogs = append(store.gameLogs, g)
			if g.ID > maxGameID {
				maxGameID = g.ID
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stateservice: read snapshot %s: %w", path, err)
	}

	if maxRoomID >= store.nextRoomID {
		store.nextRoomID = maxRoomID + 1
	}
	if maxGameID >= store.nextGameID {
		store.nextGameID = maxGameID + 1
	}
	return nil
}

func parseUserLine(fields []string) (User, bool) {
	if len(fields) < 3 {
		return User{}, false
	}
	online, err := strconv.Atoi(fields[2])
	if err != nil {
		return User{}, false
	}
	return User{Username: fields[0], Pass: fields[1], Online: online != 0}, true
}

func parseRoomLine(fields []string) (*Room, bool) {
	if len(fields) < 8 {
		return nil, false
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, false
	}
	r := &Room{
		ID:         id,
		Name:       fields[1],
		Host:       fields[2],
		Visibility: fields[3],
		Status:     fields[4],
		P1:         fields[5],
		P2:         fields[6],
		Token:      fields[7],
		InviteList: make(map[string]struct{}),
		Spectators: make(map[string]struct{}),
	}

	rest := fields[8:]
	rest = consumeSet(rest, r.InviteList)
	consumeSet(rest, r.Spectators)
	return r, true
}

// consumeSet reads a count-prefixed run of values off the front of
// fields and inserts them into set, returning whatever fields remain.
func consumeSet(fields []string, set map[string]struct{}) []string {
	if len(fields) == 0 {
		return fields
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return fields
	}
	fields = fields[1:]
	for i := 0; i < count && i < len(fields); i++ {
		set[fields[i]] = struct{}{}
	}
	if count > len(fields) {
		count = len(fields)
	}
	return fields[count:]
}

func parseLogLine(fields []string) (*GameLog, bool) {
	if len(fields) < 6 {
		return nil, false
	}
	id, err1 := strconv.Atoi(fields[0])
	roomID, err2 := strconv.Atoi(fields[1])
	score1, err3 := strconv.Atoi(fields[4])
	score2, err4 := strconv.Atoi(fields[5])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil, false
	}
	return &GameLog{ID: id, RoomID: roomID, User1: fields[2], User2: fields[3], Score1: score1, Score2: score2}, true
}

// SaveSnapshot writes the current store out in the same format
// LoadSnapshot reads, grounded on save_state in db_server.cpp.
func SaveSnapshot(store *Store, path string) error {
	store.mu.RLock()
	defer store.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stateservice: create snapshot %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, u := range store.users {
		fmt.Fprintf(w, "USER %s %s %d\n", quote(u.Username), quote(u.Pass), boolInt(u.Online))
	}
	for _, r := range store.rooms {
		fmt.Fprintf(w, "ROOM %d %s %s %s %s %s %s %s", r.ID, quote(r.Name), quote(r.Host), quote(r.Visibility), quote(r.Status), quote(r.P1), quote(r.P2), quote(r.Token))
		writeSet(w, r.InviteList)
		writeSet(w, r.Spectators)
		fmt.Fprint(w, "\n")
	}
	for _, g := range store.gameLogs {
		fmt.Fprintf(w, "LOG %d %d %s %s %d %d\n", g.ID, g.RoomID, quote(g.User1), quote(g.User2), g.Score1, g.Score2)
	}
	return w.Flush()
}

func writeSet(w *bufio.Writer, set map[string]struct{}) {
	fmt.Fprintf(w, " %d", len(set))
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	for _, k := range keys {
		fmt.Fprintf(w, " %s", quote(k))
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// quote renders a string the way std::quoted does: wrapped in double
// quotes, with internal backslashes and double quotes escaped.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

// splitQuotedFields tokenizes a line on whitespace while respecting
// double-quoted fields, the inverse of quote, matching how
// std::istringstream >> std::quoted parses a line.
func splitQuotedFields(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	hadField := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case inQuotes:
			if c == '\\' && i+1 < len(runes) {
				i++
				cur.WriteRune(runes[i])
			} else if c == '"' {
				inQuotes = false
			} else {
				cur.WriteRune(c)
			}
		case c == '"':
			inQuotes = true
			hadField = true
		case c == ' ' || c == '\t':
			if hadField {
				fields = append(fields, cur.String())
				cur.Reset()
				hadField = false
			}
		default:
			hadField = true
			cur.WriteRune(c)
		}
	}
	if hadField {
		fields = append(fields, cur.String())
	}
	if inQuotes {
		return nil, fmt.Errorf("stateservice: unterminated quoted field")
	}
	return fields, nil
}
