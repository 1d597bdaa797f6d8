package rooms

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/RoseWrightdev/chatroomd/internal/v1/logging"
	"github.com/RoseWrightdev/chatroomd/internal/v1/metrics"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
	"github.com/RoseWrightdev/chatroomd/internal/v1/users"
	"go.uber.org/zap"
)

// Announcements broadcast on membership changes. They travel as ordinary
// chat updates with the affected user as sender.
const (
	joinAnnouncement  = "User has joined the room"
	leaveAnnouncement = "User has left the room"
)

// Log rotation bounds. A room log is rotated once it exceeds maxLogSize
// bytes; rotation drops the whole lines occupying roughly the first
// rotateCutoff bytes, so the log stays under ~2x the cutoff.
const (
	maxLogSize   = 1024
	rotateCutoff = 512
)

// Room is one live chat room. The mutex orders every append to the log,
// every membership mutation, and every broadcast, so all members observe
// join/leave/chat events in the same relative order.
type Room struct {
	Name    string
	LogPath string

	mu      sync.Mutex
	members []*users.User
}

// broadcastLocked sends a chat update to every member except sender. A
// failing peer does not abort the fan-out; the worst per-peer status is
// returned. Callers hold r.mu.
func (r *Room) broadcastLocked(sender *users.User, chat string) types.Status {
	status := types.StatusOK
	for _, m := range r.members {
		if m == sender {
			continue
		}
		s := m.Peer.SendChatUpdate(sender.Name, chat)
		if s != types.StatusOK {
			logging.Warn(context.Background(), "Chat update delivery failed",
				zap.String("room", r.Name), zap.String("member", m.Name), zap.String("status", s.String()))
		}
		status = types.Worst(status, s)
	}
	return status
}

// appendChatLocked appends "sender>chat" to the room log and rotates the log
// if it has grown past the size bound. Callers hold r.mu.
func (r *Room) appendChatLocked(sender, chat string) error {
	file, err := os.OpenFile(r.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.LogPath, err)
	}
	if _, err := fmt.Fprintf(file, "%s>%s\n", sender, chat); err != nil {
		_ = file.Close()
		return fmt.Errorf("append %s: %w", r.LogPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", r.LogPath, err)
	}

	info, err := os.Stat(r.LogPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", r.LogPath, err)
	}
	if info.Size() <= maxLogSize {
		return nil
	}
	return r.rotateLocked()
}

// rotateLocked rewrites the log keeping only the lines that start at or
// after the cutoff offset; a line beginning exactly at the cutoff lies
// entirely outside the dropped prefix and survives. The tail is staged in a
// sibling scratch file and renamed over the original. Callers hold r.mu.
func (r *Room) rotateLocked() error {
	src, err := os.Open(r.LogPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.LogPath, err)
	}

	scratch := r.LogPath + ".log"
	dst, err := os.Create(scratch)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("create %s: %w", scratch, err)
	}

	writer := bufio.NewWriter(dst)
	scanner := bufio.NewScanner(src)
	offset := 0
	for scanner.Scan() {
		line := scanner.Text()
		if offset >= rotateCutoff {
			if _, err := writer.WriteString(line + "\n"); err != nil {
				_ = src.Close()
				_ = dst.Close()
				return fmt.Errorf("write %s: %w", scratch, err)
			}
		}
		offset += len(line) + 1
	}
	_ = src.Close()
	if err := scanner.Err(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("read %s: %w", r.LogPath, err)
	}
	if err := writer.Flush(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("flush %s: %w", scratch, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", scratch, err)
	}

	logging.Info(context.Background(), "Rotated room log", zap.String("room", r.Name))
	return os.Rename(scratch, r.LogPath)
}

// removeMemberLocked drops the first membership entry matching user by
// identity. Callers hold r.mu.
func (r *Room) removeMemberLocked(user *users.User) {
	for i, m := range r.members {
		if m == user {
			r.members = append(r.members[:i], r.members[i+1:]...)
			metrics.RoomMembers.WithLabelValues(r.Name).Set(float64(len(r.members)))
			return
		}
	}
}

// MemberCount reports the current membership size.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
