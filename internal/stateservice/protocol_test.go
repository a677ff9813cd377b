package stateservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchUserCreateAndRead(t *testing.T) {
	store := NewStore()

	resp := Dispatch(store, "User create username=alice pass=hunter2")
	assert.Equal(t, "OK user=alice", resp)

	resp = Dispatch(store, "User read username=alice")
	assert.Equal(t, "OK username=alice pass=hunter2 online=0", resp)
}

func TestDispatchUserCreateDuplicateReturnsExistsKind(t *testing.T) {
	store := NewStore()
	require.Equal(t, "OK user=alice", Dispatch(store, "User create username=alice pass=x"))

	resp := Dispatch(store, "User create username=alice pass=y")
	assert.Equal(t, "ERR exists", resp)
}

func TestDispatchCompareSetOnlineValidatesFlags(t *testing.T) {
	store := NewStore()
	Dispatch(store, "User create username=alice pass=x")

	assert.Equal(t, "ERR invalid_expect", Dispatch(store, "User compareSetOnline username=alice expect=7 value=1"))
	assert.Equal(t, "ERR invalid_value", Dispatch(store, "User compareSetOnline username=alice expect=0 value=9"))
	assert.Equal(t, "OK", Dispatch(store, "User compareSetOnline username=alice expect=0 value=1"))
	assert.Equal(t, "ERR mismatch", Dispatch(store, "User compareSetOnline username=alice expect=0 value=1"))
}

func TestDispatchRoomLifecycle(t *testing.T) {
	store := NewStore()

	resp := Dispatch(store, "Room create name=arena host=alice visibility=public")
	assert.Equal(t, "OK roomId=1", resp)

	assert.Equal(t, "OK", Dispatch(store, "Room join roomId=1 user=bob"))
	assert.Equal(t, "OK id=1 name=arena host=alice status=idle p1=alice p2=bob token=", Dispatch(store, "Room get roomId=1"))
	assert.Equal(t, "OK 1:arena:alice:idle:public:alice:bob;", Dispatch(store, "Room list"))

	assert.Equal(t, "OK", Dispatch(store, "Room setToken roomId=1 token=abc123"))
	assert.Equal(t, "OK", Dispatch(store, "Room setStatus roomId=1 status=playing"))

	assert.Equal(t, "ERR playing", Dispatch(store, "Room join roomId=1 user=carol"))
}

func TestDispatchUnknownCommandKind(t *testing.T) {
	store := NewStore()
	assert.Equal(t, "ERR unknown_command", Dispatch(store, "Frobnicate thing"))
	assert.Equal(t, "ERR unknown_command", Dispatch(store, "Room"))
}

func TestDispatchRoomJoinValidatesRoomID(t *testing.T) {
	store := NewStore()
	assert.Equal(t, "ERR invalid_roomId", Dispatch(store, "Room join roomId=notanumber user=bob"))
	assert.Equal(t, "ERR missing_user", Dispatch(store, "Room join roomId=1"))
}

func TestDispatchGameLogCreateAndList(t *testing.T) {
	store := NewStore()

	resp := Dispatch(store, "GameLog create roomId=1 user1=alice user2=bob score1=300 score2=100")
	assert.Equal(t, "OK gameId=1", resp)

	assert.Equal(t, "OK id=1 room=1 p1=alice s1=300 p2=bob s2=100;", Dispatch(store, "GameLog list"))
}

func TestDispatchRoomInviteAndListInvites(t *testing.T) {
	store := NewStore()
	Dispatch(store, "Room create name=arena host=alice visibility=private")

	assert.Equal(t, "OK invited=bob", Dispatch(store, "Room invite roomId=1 host=alice user=bob"))
	assert.Equal(t, "OK 1:arena:alice;", Dispatch(store, "Room listInvites user=bob"))
	assert.Equal(t, "ERR not_host", Dispatch(store, "Room invite roomId=1 host=mallory user=carol"))
}
