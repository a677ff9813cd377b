package stateservice

import "errors"

// These are the error kinds the command grammar maps onto "ERR <kind>"
// wire replies (protocol.go), grounded on the string literals
// db_server.cpp passes to its own error-reply helper. ErrTransport is
// reserved for framing/connection failures ahead of the State Service
// ever reaching command dispatch, and is never collapsed with these —
// spec.md §8 keeps "ERR db" distinct from ordinary command errors for
// exactly this reason.
var (
	// Store-level errors, returned by Store methods.
	ErrExists                = errors.New("exists")
	ErrMissingUsername       = errors.New("missing_username")
	ErrNotFound              = errors.New("not_found")
	ErrMismatch              = errors.New("mismatch")
	ErrPlaying               = errors.New("playing")
	ErrFull                  = errors.New("full")
	ErrAlreadyInRoom         = errors.New("already_in_room")
	ErrPrivateRoomNotInvited = errors.New("private_room_not_invited")
	ErrNotInRoom             = errors.New("not_in_room")
	ErrNotHost               = errors.New("not_host")
	ErrNotPlaying            = errors.New("not_playing")
	ErrNotSpectating         = errors.New("not_spectating")

	// Command-grammar validation errors, returned by protocol.go before
	// ever calling into the Store.
	ErrInvalidRoomID  = errors.New("invalid_roomId")
	ErrMissingUser    = errors.New("missing_user")
	ErrMissingStatus  = errors.New("missing_status")
	ErrMissingToken   = errors.New("missing_token")
	ErrMissingHost    = errors.New("missing_host")
	ErrInvalidScore1  = errors.New("invalid_score1")
	ErrInvalidScore2  = errors.New("invalid_score2")
	ErrInvalidExpect  = errors.New("invalid_expect")
	ErrInvalidValue   = errors.New("invalid_value")
	ErrUnknownCommand = errors.New("unknown_command")

	ErrTransport = errors.New("db")
)
