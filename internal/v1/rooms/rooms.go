// Package rooms implements the shared room directory: room lifecycle under
// admin control, the room-names sidecar file, member join/leave, and chat
// fan-out with a bounded per-room log.
//
// Lock order is strict: the directory mutex is always acquired before any
// room mutex, and never the reverse.
package rooms

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoseWrightdev/chatroomd/internal/v1/logging"
	"github.com/RoseWrightdev/chatroomd/internal/v1/metrics"
	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/store"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
	"github.com/RoseWrightdev/chatroomd/internal/v1/users"
	"go.uber.org/zap"
)

// Directory is the shared room-name to room mapping plus its on-disk layout:
// a directory of per-room logs and a names sidecar listing every live room.
type Directory struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	maxRooms    int
	dir         string
	namesPath   string
	namesBackup string
}

// NewDirectory builds an empty directory rooted at dir. Call Init before
// serving.
func NewDirectory(dir string, maxRooms int) *Directory {
	return &Directory{
		rooms:       make(map[string]*Room),
		maxRooms:    maxRooms,
		dir:         dir,
		namesPath:   filepath.Join(dir, "room_names.log"),
		namesBackup: filepath.Join(dir, "room_names_b.log"),
	}
}

// Init creates the room directory and an empty names sidecar. Leftovers from
// a previous unclean shutdown are discarded.
func (d *Directory) Init() error {
	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("rooms: clear %s: %w", d.dir, err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("rooms: create %s: %w", d.dir, err)
	}
	if err := os.WriteFile(d.namesPath, nil, 0o644); err != nil {
		return fmt.Errorf("rooms: create %s: %w", d.namesPath, err)
	}
	return nil
}

// Teardown removes the room directory and everything under it. Rooms are
// not durable across restarts.
func (d *Directory) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name := range d.rooms {
		metrics.RoomMembers.DeleteLabelValues(name)
		delete(d.rooms, name)
	}
	metrics.ActiveRooms.Set(0)
	return os.RemoveAll(d.dir)
}

// Create makes a new empty room. Admin only.
func (d *Directory) Create(peer types.Responder, requester *users.User, name string) types.Status {
	if !requester.Admin {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeCreate, protocol.RejectAdminPriv)
	}
	if !protocol.ValidRoomNameChars(name) {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeCreate, protocol.RejectRoomChars)
	}
	if len(name) < protocol.MinRoomNameLen || len(name) > protocol.MaxRoomNameLen {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeCreate, protocol.RejectRoomLen)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.rooms) >= d.maxRooms {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeCreate, protocol.RejectMaxRooms)
	}
	if _, exists := d.rooms[name]; exists {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeCreate, protocol.RejectRoomExists)
	}

	logPath := filepath.Join(d.dir, name+".log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		logging.Error(context.Background(), "Failed to create room log",
			zap.String("room", name), zap.Error(err))
		return types.StatusFailure
	}
	if err := store.AppendLine(d.namesPath, name); err != nil {
		logging.Error(context.Background(), "Failed to record room name",
			zap.String("room", name), zap.Error(err))
		return types.StatusFailure
	}

	d.rooms[name] = &Room{Name: name, LogPath: logPath}
	metrics.ActiveRooms.Inc()
	logging.Info(context.Background(), "Room created", zap.String("room", name))

	return peer.SendAck(protocol.TypeRooms, protocol.SubtypeCreate)
}

// Delete destroys an empty room, its log file, and its sidecar entry. Admin
// only.
func (d *Directory) Delete(peer types.Responder, requester *users.User, name string) types.Status {
	if !requester.Admin {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeDelete, protocol.RejectAdminPriv)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	room, exists := d.rooms[name]
	if !exists {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeDelete, protocol.RejectRoomDoesNotExist)
	}
	if room.MemberCount() > 0 {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeDelete, protocol.RejectRoomInUse)
	}

	if err := os.Remove(room.LogPath); err != nil {
		logging.Error(context.Background(), "Failed to remove room log",
			zap.String("room", name), zap.Error(err))
		return types.StatusFailure
	}
	if err := store.FilterFile(d.namesPath, d.namesBackup, func(line string) bool {
		return line != name
	}); err != nil {
		logging.Error(context.Background(), "Failed to rewrite room names",
			zap.String("room", name), zap.Error(err))
		return types.StatusFailure
	}

	delete(d.rooms, name)
	metrics.ActiveRooms.Dec()
	metrics.RoomMembers.DeleteLabelValues(name)
	logging.Info(context.Background(), "Room deleted", zap.String("room", name))

	return peer.SendAck(protocol.TypeRooms, protocol.SubtypeDelete)
}

// List sends the names of every live room as an ack followed by the sidecar
// file contents.
func (d *Directory) List(peer types.Responder) types.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.rooms) == 0 {
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeList, protocol.RejectNoRooms)
	}
	return peer.SendFileAck(protocol.TypeRooms, protocol.SubtypeList, d.namesPath)
}

// Join adds user to the named room, replays the recent chat log to it, and
// announces the arrival to the other members.
func (d *Directory) Join(peer types.Responder, user *users.User, name string) types.Status {
	d.mu.Lock()
	room, exists := d.rooms[name]
	if !exists {
		d.mu.Unlock()
		return peer.SendReject(protocol.TypeRooms, protocol.SubtypeJoin, protocol.RejectRoomDoesNotExist)
	}
	room.mu.Lock()
	d.mu.Unlock()
	defer room.mu.Unlock()

	room.members = append(room.members, user)
	user.CurrentRoom = name
	metrics.RoomMembers.WithLabelValues(name).Set(float64(len(room.members)))

	status := peer.SendFileAck(protocol.TypeRooms, protocol.SubtypeJoin, room.LogPath)
	if status != types.StatusOK {
		return status
	}
	return types.Worst(status, room.broadcastLocked(user, joinAnnouncement))
}

// Chat appends the message to the log of user's current room and fans it out
// to the other members. The sender gets no echo.
func (d *Directory) Chat(user *users.User, message string) types.Status {
	d.mu.Lock()
	room, exists := d.rooms[user.CurrentRoom]
	if !exists {
		d.mu.Unlock()
		logging.Error(context.Background(), "Chat from user with no live room",
			zap.String("username", user.Name), zap.String("room", user.CurrentRoom))
		return types.StatusFailure
	}
	room.mu.Lock()
	d.mu.Unlock()
	defer room.mu.Unlock()

	if err := room.appendChatLocked(user.Name, message); err != nil {
		logging.Error(context.Background(), "Failed to append chat",
			zap.String("room", room.Name), zap.Error(err))
		return types.StatusFailure
	}
	metrics.ChatMessages.Inc()

	return room.broadcastLocked(user, message)
}

// Leave removes user from its current room and announces the departure to
// the remaining members. The ack is suppressed during QUIT and cleanup.
func (d *Directory) Leave(peer types.Responder, user *users.User, sendAck bool) types.Status {
	d.mu.Lock()
	room, exists := d.rooms[user.CurrentRoom]
	if !exists {
		d.mu.Unlock()
		user.CurrentRoom = ""
		return types.StatusOK
	}
	room.mu.Lock()
	d.mu.Unlock()

	room.removeMemberLocked(user)
	status := room.broadcastLocked(user, leaveAnnouncement)
	room.mu.Unlock()

	user.CurrentRoom = ""

	if !sendAck {
		return status
	}
	return types.Worst(status, peer.SendAck(protocol.TypeChat, protocol.SubtypeLeave))
}

// Lookup returns the live room with the given name, or nil. Test helper.
func (d *Directory) Lookup(name string) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rooms[name]
}

// Count returns the number of live rooms.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}
