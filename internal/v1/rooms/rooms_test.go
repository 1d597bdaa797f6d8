package rooms

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
	"github.com/RoseWrightdev/chatroomd/internal/v1/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T, maxRooms int) *Directory {
	t.Helper()
	d := NewDirectory(filepath.Join(t.TempDir(), "rooms"), maxRooms)
	require.NoError(t, d.Init())
	return d
}

func admin(peer types.Responder) *users.User {
	return &users.User{Name: "admin", LoggedIn: true, Admin: true, Peer: peer}
}

func member(name string, peer types.Responder) *users.User {
	return &users.User{Name: name, LoggedIn: true, Peer: peer}
}

func TestInitAndTeardown(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rooms")
	d := NewDirectory(dir, 5)
	require.NoError(t, d.Init())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(filepath.Join(dir, "room_names.log"))
	assert.NoError(t, err)

	require.NoError(t, d.Teardown())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCreate(t *testing.T) {
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}

	status := d.Create(peer, admin(peer), "lobby")
	assert.Equal(t, types.StatusOK, status)
	require.Len(t, peer.acks, 1)
	require.NotNil(t, d.Lookup("lobby"))

	_, err := os.Stat(d.Lookup("lobby").LogPath)
	assert.NoError(t, err)
	names, err := os.ReadFile(d.namesPath)
	require.NoError(t, err)
	assert.Equal(t, "lobby\n", string(names))
}

func TestCreate_Rejections(t *testing.T) {
	d := newTestDirectory(t, 1)
	peer := &fakePeer{}
	adm := admin(peer)
	require.Equal(t, types.StatusOK, d.Create(peer, adm, "taken"))

	tests := []struct {
		name      string
		requester *users.User
		room      string
		want      protocol.RejectCode
	}{
		{"not admin", member("alice", peer), "lobby", protocol.RejectAdminPriv},
		{"bad charset", adm, "lob_by", protocol.RejectRoomChars},
		{"charset beats length", adm, "a_b", protocol.RejectRoomChars},
		{"too short", adm, "four", protocol.RejectRoomLen},
		{"at cap", adm, "lobby", protocol.RejectMaxRooms},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePeer{}
			assert.Equal(t, types.StatusOK, d.Create(p, tt.requester, tt.room))
			assert.Equal(t, tt.want, p.lastReject())
		})
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}
	adm := admin(peer)
	require.Equal(t, types.StatusOK, d.Create(peer, adm, "lobby"))

	p := &fakePeer{}
	assert.Equal(t, types.StatusOK, d.Create(p, adm, "lobby"))
	assert.Equal(t, protocol.RejectRoomExists, p.lastReject())
}

func TestCreate_Boundaries(t *testing.T) {
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}
	adm := admin(peer)

	assert.Equal(t, types.StatusOK, d.Create(peer, adm, "five5"))
	assert.Equal(t, types.StatusOK, d.Create(peer, adm, strings.Repeat("r", 30)))
	assert.Empty(t, peer.rejects)
}

func TestDelete(t *testing.T) {
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}
	adm := admin(peer)
	require.Equal(t, types.StatusOK, d.Create(peer, adm, "lobby"))
	require.Equal(t, types.StatusOK, d.Create(peer, adm, "lounge"))
	logPath := d.Lookup("lobby").LogPath

	assert.Equal(t, types.StatusOK, d.Delete(peer, adm, "lobby"))
	assert.Nil(t, d.Lookup("lobby"))
	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err))

	names, err := os.ReadFile(d.namesPath)
	require.NoError(t, err)
	assert.Equal(t, "lounge\n", string(names))
}

func TestDelete_ExactNameMatch(t *testing.T) {
	// Deleting "lounge1" must not take "lounge12" with it.
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}
	adm := admin(peer)
	require.Equal(t, types.StatusOK, d.Create(peer, adm, "lounge1"))
	require.Equal(t, types.StatusOK, d.Create(peer, adm, "lounge12"))

	require.Equal(t, types.StatusOK, d.Delete(peer, adm, "lounge1"))

	names, err := os.ReadFile(d.namesPath)
	require.NoError(t, err)
	assert.Equal(t, "lounge12\n", string(names))
	assert.NotNil(t, d.Lookup("lounge12"))
}

func TestDelete_Rejections(t *testing.T) {
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}
	adm := admin(peer)
	require.Equal(t, types.StatusOK, d.Create(peer, adm, "lobby"))

	t.Run("not admin", func(t *testing.T) {
		p := &fakePeer{}
		d.Delete(p, member("alice", p), "lobby")
		assert.Equal(t, protocol.RejectAdminPriv, p.lastReject())
	})
	t.Run("unknown room", func(t *testing.T) {
		p := &fakePeer{}
		d.Delete(p, adm, "nowhere")
		assert.Equal(t, protocol.RejectRoomDoesNotExist, p.lastReject())
	})
	t.Run("in use", func(t *testing.T) {
		occupant := member("carol", &fakePeer{})
		require.Equal(t, types.StatusOK, d.Join(occupant.Peer, occupant, "lobby"))

		p := &fakePeer{}
		d.Delete(p, adm, "lobby")
		assert.Equal(t, protocol.RejectRoomInUse, p.lastReject())

		// After the occupant leaves, deletion succeeds.
		require.Equal(t, types.StatusOK, d.Leave(occupant.Peer, occupant, false))
		assert.Equal(t, types.StatusOK, d.Delete(p, adm, "lobby"))
		assert.Nil(t, d.Lookup("lobby"))
	})
}

func TestList(t *testing.T) {
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}

	t.Run("empty directory", func(t *testing.T) {
		assert.Equal(t, types.StatusOK, d.List(peer))
		assert.Equal(t, protocol.RejectNoRooms, peer.lastReject())
	})

	t.Run("with rooms", func(t *testing.T) {
		adm := admin(peer)
		require.Equal(t, types.StatusOK, d.Create(peer, adm, "lobby"))
		require.Equal(t, types.StatusOK, d.Create(peer, adm, "lounge"))

		p := &fakePeer{}
		assert.Equal(t, types.StatusOK, d.List(p))
		require.Len(t, p.files, 1)
		assert.Equal(t, "lobby\nlounge\n", p.files[0])
	})
}

func TestJoin(t *testing.T) {
	d := newTestDirectory(t, 5)
	adminPeer := &fakePeer{}
	adm := admin(adminPeer)
	require.Equal(t, types.StatusOK, d.Create(adminPeer, adm, "lobby"))

	bobPeer := &fakePeer{}
	bob := member("bob", bobPeer)
	require.Equal(t, types.StatusOK, d.Join(bobPeer, bob, "lobby"))
	assert.Equal(t, "lobby", bob.CurrentRoom)
	require.Len(t, bobPeer.files, 1)
	assert.Empty(t, bobPeer.files[0]) // log was empty at join time

	// A second joiner gets the log and the first member gets the announcement.
	carolPeer := &fakePeer{}
	carol := member("carol", carolPeer)
	require.Equal(t, types.StatusOK, d.Join(carolPeer, carol, "lobby"))
	assert.Equal(t, 2, d.Lookup("lobby").MemberCount())
	require.Len(t, bobPeer.chats, 1)
	assert.Equal(t, "carol>"+joinAnnouncement, bobPeer.chats[0])
	assert.Empty(t, carolPeer.chats)
}

func TestJoin_UnknownRoom(t *testing.T) {
	d := newTestDirectory(t, 5)
	peer := &fakePeer{}

	status := d.Join(peer, member("bob", peer), "nowhere")
	assert.Equal(t, types.StatusOK, status)
	assert.Equal(t, protocol.RejectRoomDoesNotExist, peer.lastReject())
}

func TestChat(t *testing.T) {
	d := newTestDirectory(t, 5)
	adminPeer := &fakePeer{}
	adm := admin(adminPeer)
	require.Equal(t, types.StatusOK, d.Create(adminPeer, adm, "lobby"))

	bobPeer, carolPeer := &fakePeer{}, &fakePeer{}
	bob, carol := member("bob", bobPeer), member("carol", carolPeer)
	require.Equal(t, types.StatusOK, d.Join(bobPeer, bob, "lobby"))
	require.Equal(t, types.StatusOK, d.Join(carolPeer, carol, "lobby"))

	assert.Equal(t, types.StatusOK, d.Chat(bob, "hi"))

	// Carol hears Bob; Bob gets no echo.
	assert.Contains(t, carolPeer.chats, "bob>hi")
	for _, c := range bobPeer.chats {
		assert.NotContains(t, c, ">hi")
	}

	data, err := os.ReadFile(d.Lookup("lobby").LogPath)
	require.NoError(t, err)
	assert.Equal(t, "bob>hi\n", string(data))
}

func TestChat_NoLiveRoom(t *testing.T) {
	d := newTestDirectory(t, 5)
	bob := member("bob", &fakePeer{})
	bob.CurrentRoom = "gone"

	assert.Equal(t, types.StatusFailure, d.Chat(bob, "hi"))
}

func TestChat_BroadcastContinuesPastDeadPeer(t *testing.T) {
	d := newTestDirectory(t, 5)
	adminPeer := &fakePeer{}
	adm := admin(adminPeer)
	require.Equal(t, types.StatusOK, d.Create(adminPeer, adm, "lobby"))

	deadPeer := &fakePeer{chatStatus: types.StatusConnFailure}
	alivePeer := &fakePeer{}
	bobPeer := &fakePeer{}
	dead, alive, bob := member("dead", deadPeer), member("alive", alivePeer), member("bob", bobPeer)
	require.Equal(t, types.StatusOK, d.Join(alivePeer, alive, "lobby"))
	require.Equal(t, types.StatusOK, d.Join(bobPeer, bob, "lobby"))
	require.Equal(t, types.StatusOK, d.Join(deadPeer, dead, "lobby"))

	// The dead peer fails its delivery; the live one must still receive, and
	// the merged status reports the worst outcome.
	status := d.Chat(bob, "hi")
	assert.Equal(t, types.StatusConnFailure, status)
	assert.Contains(t, alivePeer.chats, "bob>hi")
}

func TestLeave(t *testing.T) {
	d := newTestDirectory(t, 5)
	adminPeer := &fakePeer{}
	adm := admin(adminPeer)
	require.Equal(t, types.StatusOK, d.Create(adminPeer, adm, "lobby"))

	bobPeer, carolPeer := &fakePeer{}, &fakePeer{}
	bob, carol := member("bob", bobPeer), member("carol", carolPeer)
	require.Equal(t, types.StatusOK, d.Join(bobPeer, bob, "lobby"))
	require.Equal(t, types.StatusOK, d.Join(carolPeer, carol, "lobby"))

	assert.Equal(t, types.StatusOK, d.Leave(bobPeer, bob, true))
	assert.Empty(t, bob.CurrentRoom)
	assert.Equal(t, 1, d.Lookup("lobby").MemberCount())
	assert.Contains(t, carolPeer.chats, "bob>"+leaveAnnouncement)

	// The departing client is acked with CHAT/LEAVE.
	last := bobPeer.acks[len(bobPeer.acks)-1]
	assert.Equal(t, protocol.TypeChat, last.Type)
	assert.Equal(t, protocol.SubtypeLeave, last.Subtype)
}

func TestLeave_SilentSkipsAck(t *testing.T) {
	d := newTestDirectory(t, 5)
	adminPeer := &fakePeer{}
	adm := admin(adminPeer)
	require.Equal(t, types.StatusOK, d.Create(adminPeer, adm, "lobby"))

	bobPeer := &fakePeer{}
	bob := member("bob", bobPeer)
	require.Equal(t, types.StatusOK, d.Join(bobPeer, bob, "lobby"))
	acksBefore := len(bobPeer.acks)

	assert.Equal(t, types.StatusOK, d.Leave(bobPeer, bob, false))
	assert.Len(t, bobPeer.acks, acksBefore)
}

func TestLeave_RoomAlreadyGone(t *testing.T) {
	d := newTestDirectory(t, 5)
	bob := member("bob", &fakePeer{})
	bob.CurrentRoom = "gone"

	assert.Equal(t, types.StatusOK, d.Leave(bob.Peer, bob, false))
	assert.Empty(t, bob.CurrentRoom)
}
