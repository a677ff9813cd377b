package stateservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
}

func (ts *StoreTestSuite) SetupTest() {
	ts.store = NewStore()
}

func (ts *StoreTestSuite) TestCreateUserRejectsDuplicate() {
	require.NoError(ts.T(), ts.store.CreateUser("alice", "hunter2"))
	err := ts.store.CreateUser("alice", "other")
	assert.ErrorIs(ts.T(), err, ErrExists)
}

func (ts *StoreTestSuite) TestCreateUserRejectsEmptyUsername() {
	err := ts.store.CreateUser("", "x")
	assert.ErrorIs(ts.T(), err, ErrMissingUsername)
}

func (ts *StoreTestSuite) TestCompareSetOnlineIsAtomicCAS() {
	require.NoError(ts.T(), ts.store.CreateUser("alice", "x"))

	require.NoError(ts.T(), ts.store.CompareSetOnline("alice", false, true))
	u, err := ts.store.ReadUser("alice")
	require.NoError(ts.T(), err)
	assert.True(ts.T(), u.Online)

	// A second CAS expecting offline must fail now that alice is online,
	// which is exactly the single-login enforcement primitive.
	err = ts.store.CompareSetOnline("alice", false, true)
	assert.ErrorIs(ts.T(), err, ErrMismatch)
}

func (ts *StoreTestSuite) TestCompareSetOnlineUnknownUser() {
	err := ts.store.CompareSetOnline("ghost", false, true)
	assert.ErrorIs(ts.T(), err, ErrNotFound)
}

func (ts *StoreTestSuite) TestJoinRoomEnforcesOrderedRules() {
	room := ts.store.CreateRoom("arena", "alice", "public")

	require.NoError(ts.T(), ts.store.JoinRoom(room.ID, "bob"))
	assert.ErrorIs(ts.T(), ts.store.JoinRoom(room.ID, "carol"), ErrFull)
	// full is checked before membership, so a seated player retrying a
	// full room is told it is full.
	assert.ErrorIs(ts.T(), ts.store.JoinRoom(room.ID, "bob"), ErrFull)
	assert.ErrorIs(ts.T(), ts.store.JoinRoom(9999, "dave"), ErrNotFound)
}

func (ts *StoreTestSuite) TestJoinPrivateRoomRequiresInvite() {
	room := ts.store.CreateRoom("arena", "alice", "private")

	err := ts.store.JoinRoom(room.ID, "bob")
	assert.ErrorIs(ts.T(), err, ErrPrivateRoomNotInvited)

	require.NoError(ts.T(), ts.store.InviteToRoom(room.ID, "bob", "alice"))
	require.NoError(ts.T(), ts.store.JoinRoom(room.ID, "bob"))
}

func (ts *StoreTestSuite) TestInviteRequiresCurrentHost() {
	room := ts.store.CreateRoom("arena", "alice", "private")
	err := ts.store.InviteToRoom(room.ID, "carol", "bob")
	assert.ErrorIs(ts.T(), err, ErrNotHost)
}

func (ts *StoreTestSuite) TestJoinRejectsRoomInPlay() {
	room := ts.store.CreateRoom("arena", "alice", "public")
	require.NoError(ts.T(), ts.store.JoinRoom(room.ID, "bob"))
	require.NoError(ts.T(), ts.store.SetRoomStatus(room.ID, "playing"))

	err := ts.store.JoinRoom(room.ID, "carol")
	assert.ErrorIs(ts.T(), err, ErrPlaying)
}

func (ts *StoreTestSuite) TestLeaveRoomHostWithGuestPromotesGuest() {
	room := ts.store.CreateRoom("arena", "alice", "public")
	require.NoError(ts.T(), ts.store.JoinRoom(room.ID, "bob"))

	closed, err := ts.store.LeaveRoom(room.ID, "alice")
	require.NoError(ts.T(), err)
	assert.False(ts.T(), closed)

	got, err := ts.store.GetRoom(room.ID)
	require.NoError(ts.T(), err)
	assert.Equal(ts.T(), "bob", got.Host)
	assert.Equal(ts.T(), "bob", got.P1)
	assert.Equal(ts.T(), "", got.P2)
}

func (ts *StoreTestSuite) TestLeaveRoomSoleHostClosesRoom() {
	room := ts.store.CreateRoom("arena", "alice", "public")

	closed, err := ts.store.LeaveRoom(room.ID, "alice")
	require.NoError(ts.T(), err)
	assert.True(ts.T(), closed)

	_, err = ts.store.GetRoom(room.ID)
	assert.ErrorIs(ts.T(), err, ErrNotFound)
}

func (ts *StoreTestSuite) TestLeaveRoomSpectatorOnlyRemovesSpectator() {
	room := ts.store.CreateRoom("arena", "alice", "public")
	require.NoError(ts.T(), ts.store.JoinRoom(room.ID, "bob"))
	require.NoError(ts.T(), ts.store.SetRoomStatus(room.ID, "playing"))
	require.NoError(ts.T(), ts.store.SpectateRoom(room.ID, "carol"))

	closed, err := ts.store.LeaveRoom(room.ID, "carol")
	require.NoError(ts.T(), err)
	assert.False(ts.T(), closed)

	got, err := ts.store.GetRoom(room.ID)
	require.NoError(ts.T(), err)
	assert.Equal(ts.T(), "playing", got.Status, "a departing spectator must not disturb an in-progress match")
}

func (ts *StoreTestSuite) TestSetRoomStatusIdleClearsTransientState() {
	room := ts.store.CreateRoom("arena", "alice", "private")
	require.NoError(ts.T(), ts.store.InviteToRoom(room.ID, "bob", "alice"))
	require.NoError(ts.T(), ts.store.SetRoomToken(room.ID, "tok-123"))
	require.NoError(ts.T(), ts.store.SetRoomStatus(room.ID, "playing"))
	require.NoError(ts.T(), ts.store.SpectateRoom(room.ID, "carol"))

	require.NoError(ts.T(), ts.store.SetRoomStatus(room.ID, "idle"))

	got, err := ts.store.GetRoom(room.ID)
	require.NoError(ts.T(), err)
	assert.Equal(ts.T(), "", got.Token)

	invites := ts.store.ListInvites("bob")
	assert.Empty(ts.T(), invites, "returning to idle must clear the invite list")
}

func (ts *StoreTestSuite) TestSpectateRequiresPlayingRoom() {
	room := ts.store.CreateRoom("arena", "alice", "public")
	err := ts.store.SpectateRoom(room.ID, "carol")
	assert.ErrorIs(ts.T(), err, ErrNotPlaying)
}

func (ts *StoreTestSuite) TestUnspectateRejectsNonSpectator() {
	room := ts.store.CreateRoom("arena", "alice", "public")
	require.NoError(ts.T(), ts.store.JoinRoom(room.ID, "bob"))
	require.NoError(ts.T(), ts.store.SetRoomStatus(room.ID, "playing"))

	err := ts.store.UnspectateRoom(room.ID, "carol")
	assert.ErrorIs(ts.T(), err, ErrNotSpectating)
}

func (ts *StoreTestSuite) TestListPublicRoomsExcludesPrivate() {
	ts.store.CreateRoom("open", "alice", "public")
	ts.store.CreateRoom("secret", "bob", "private")

	rooms := ts.store.ListPublicRooms()
	require.Len(ts.T(), rooms, 1)
	assert.Equal(ts.T(), "open", rooms[0].Name)
}

func (ts *StoreTestSuite) TestGameLogCreateAndListPreserveOrder() {
	g1 := ts.store.CreateGameLog(1, "alice", "bob", 300, 100)
	g2 := ts.store.CreateGameLog(2, "carol", "dave", 50, 900)

	logs := ts.store.ListGameLogs()
	require.Len(ts.T(), logs, 2)
	assert.Equal(ts.T(), g1.ID, logs[0].ID)
	assert.Equal(ts.T(), g2.ID, logs[1].ID)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
