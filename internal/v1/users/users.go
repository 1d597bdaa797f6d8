// Package users implements the shared user directory: the username to account
// mapping, the credential file behind it, and the account operations
// (register, login, admin grants, deletion).
//
// All directory state is guarded by one mutex. Handlers hold it for their full
// critical section so rejection ordering is deterministic and the in-memory
// mapping never diverges from users.txt mid-operation.
package users

import (
	"bufio"
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/RoseWrightdev/chatroomd/internal/v1/logging"
	"github.com/RoseWrightdev/chatroomd/internal/v1/metrics"
	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/store"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
	"go.uber.org/zap"
)

// MaxUsers caps the directory size regardless of configuration.
const MaxUsers = 100

// AdminUsername is promoted to admin when loaded from the credential file.
const AdminUsername = "admin"

// User is one account. Peer is the transport of the session currently logged
// in as this user; it is non-owning and only set while LoggedIn.
type User struct {
	Name        string
	password    string
	CurrentRoom string
	LoggedIn    bool
	Admin       bool
	Peer        types.Responder
}

// Directory is the shared username to account mapping.
type Directory struct {
	mu          sync.Mutex
	users       map[string]*User
	clientCount int
	maxClients  int
	path        string
	backupPath  string
}

// NewDirectory builds an empty directory backed by the credential file at
// path. Call Load before serving.
func NewDirectory(path string, maxClients int) *Directory {
	return &Directory{
		users:      make(map[string]*User),
		maxClients: maxClients,
		path:       path,
		backupPath: backupName(path),
	}
}

// backupName derives the sibling scratch file used for atomic rewrites:
// users.txt -> users_b.txt.
func backupName(path string) string {
	if ext := strings.LastIndex(path, "."); ext > 0 {
		return path[:ext] + "_b" + path[ext:]
	}
	return path + "_b"
}

// Load reads the credential file into the mapping, creating the file if it
// does not exist. The account named "admin" is marked admin. Loading stops
// silently at MaxUsers; a malformed line aborts startup.
func (d *Directory) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := os.OpenFile(d.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("users: open %s: %w", d.path, err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		if len(d.users) >= MaxUsers {
			logging.Warn(context.Background(), "Credential file exceeds user cap, remainder ignored",
				zap.Int("cap", MaxUsers))
			break
		}

		name, password, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("users: %s:%d: missing separator", d.path, lineNo)
		}
		if code, valid := validate(name, password); !valid {
			return fmt.Errorf("users: %s:%d: invalid record (%s)", d.path, lineNo, code)
		}

		d.users[name] = &User{
			Name:     name,
			password: password,
			Admin:    name == AdminUsername,
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("users: read %s: %w", d.path, err)
	}

	logging.Info(context.Background(), "User directory loaded",
		zap.Int("users", len(d.users)), zap.String("path", d.path))
	return nil
}

// validate applies the shared credential rules and names the reject code for
// the first violation. Order: username length, password length, username
// charset, password charset.
func validate(username, password string) (protocol.RejectCode, bool) {
	if len(username) < protocol.MinUsernameLen || len(username) > protocol.MaxUsernameLen {
		return protocol.RejectUsernameLen, false
	}
	if len(password) < protocol.MinPasswordLen || len(password) > protocol.MaxPasswordLen {
		return protocol.RejectPasswordLen, false
	}
	if !protocol.ValidIdentifierChars(username) {
		return protocol.RejectUsernameChar, false
	}
	if !protocol.ValidIdentifierChars(password) {
		return protocol.RejectPasswordChar, false
	}
	return 0, true
}

// Register creates an account and appends it to the credential file.
func (d *Directory) Register(peer types.Responder, username, password string) types.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[username]; exists {
		return peer.SendReject(protocol.TypeAccount, protocol.SubtypeRegister, protocol.RejectUserExists)
	}
	if code, ok := validate(username, password); !ok {
		return peer.SendReject(protocol.TypeAccount, protocol.SubtypeRegister, code)
	}
	if len(d.users) >= MaxUsers {
		return peer.SendReject(protocol.TypeAccount, protocol.SubtypeRegister, protocol.RejectMaxUsers)
	}

	if err := store.AppendLine(d.path, username+":"+password); err != nil {
		logging.Error(context.Background(), "Failed to persist new account",
			zap.String("username", username), zap.Error(err))
		return types.StatusFailure
	}
	d.users[username] = &User{Name: username, password: password}

	return peer.SendAck(protocol.TypeAccount, protocol.SubtypeRegister)
}

// Login authenticates and binds the session's transport to the account. On
// success the returned user is the session's identity until logout.
func (d *Directory) Login(peer types.Responder, username, password string) (*User, types.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.clientCount >= d.maxClients {
		return nil, peer.SendReject(protocol.TypeAccount, protocol.SubtypeLogin, protocol.RejectMaxClients)
	}
	user, exists := d.users[username]
	if !exists {
		return nil, peer.SendReject(protocol.TypeAccount, protocol.SubtypeLogin, protocol.RejectUserDoesNotExist)
	}
	if user.LoggedIn {
		return nil, peer.SendReject(protocol.TypeAccount, protocol.SubtypeLogin, protocol.RejectUserLoggedIn)
	}
	if !passwordsEqual(user.password, password) {
		return nil, peer.SendReject(protocol.TypeAccount, protocol.SubtypeLogin, protocol.RejectIncorrectPass)
	}

	status := peer.SendAck(protocol.TypeAccount, protocol.SubtypeLogin)
	if status != types.StatusOK {
		return nil, status
	}

	user.LoggedIn = true
	user.Peer = peer
	d.clientCount++
	metrics.LoggedInClients.Inc()

	return user, types.StatusOK
}

// passwordsEqual compares in constant time over fixed-length buffers so the
// comparison cost does not leak the stored password's length or content.
func passwordsEqual(stored, given string) bool {
	var a, b [protocol.MaxPasswordLen]byte
	copy(a[:], stored)
	copy(b[:], given)
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1 && len(stored) == len(given)
}

// Logout marks the user out and releases its client slot. The ack is
// suppressed when logout runs as part of QUIT or session cleanup.
func (d *Directory) Logout(peer types.Responder, user *User, sendAck bool) types.Status {
	d.mu.Lock()

	if user.LoggedIn {
		user.LoggedIn = false
		user.Peer = nil
		d.clientCount--
		metrics.LoggedInClients.Dec()
	}
	d.mu.Unlock()

	if !sendAck {
		return types.StatusOK
	}
	return peer.SendAck(protocol.TypeAccount, protocol.SubtypeLogout)
}

// SetAdmin grants or revokes the admin flag on target. The change is
// in-memory only; the credential file does not record admin status.
func (d *Directory) SetAdmin(peer types.Responder, requester *User, target string, grant bool) types.Status {
	subtype := protocol.SubtypeAdmin
	if !grant {
		subtype = protocol.SubtypeAdminRemove
	}

	if target == requester.Name {
		return peer.SendReject(protocol.TypeAccount, subtype, protocol.RejectAdminSelf)
	}
	if !requester.Admin {
		return peer.SendReject(protocol.TypeAccount, subtype, protocol.RejectAdminPriv)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	user, exists := d.users[target]
	if !exists {
		return peer.SendReject(protocol.TypeAccount, subtype, protocol.RejectUserDoesNotExist)
	}
	if user.LoggedIn {
		return peer.SendReject(protocol.TypeAccount, subtype, protocol.RejectUserLoggedIn)
	}

	user.Admin = grant
	return peer.SendAck(protocol.TypeAccount, subtype)
}

// Remove deletes target from the mapping and rewrites the credential file
// without its record. Only lines whose username field matches target exactly
// are dropped.
func (d *Directory) Remove(peer types.Responder, requester *User, target string) types.Status {
	if !requester.Admin {
		return peer.SendReject(protocol.TypeAccount, protocol.SubtypeDelete, protocol.RejectAdminPriv)
	}
	if target == requester.Name {
		return peer.SendReject(protocol.TypeAccount, protocol.SubtypeDelete, protocol.RejectAdminSelf)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	user, exists := d.users[target]
	if !exists {
		return peer.SendReject(protocol.TypeAccount, protocol.SubtypeDelete, protocol.RejectUserDoesNotExist)
	}
	if user.LoggedIn {
		return peer.SendReject(protocol.TypeAccount, protocol.SubtypeDelete, protocol.RejectUserLoggedIn)
	}

	if err := store.FilterFile(d.path, d.backupPath, func(line string) bool {
		name, _, _ := strings.Cut(line, ":")
		return name != target
	}); err != nil {
		logging.Error(context.Background(), "Failed to rewrite credential file",
			zap.String("target", target), zap.Error(err))
		return types.StatusFailure
	}
	delete(d.users, target)

	return peer.SendAck(protocol.TypeAccount, protocol.SubtypeDelete)
}

// Lookup returns the account for username, or nil. Test helper and admin
// bootstrap hook.
func (d *Directory) Lookup(username string) *User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[username]
}

// Count returns the number of accounts.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// ClientCount returns the number of sessions currently logged in.
func (d *Directory) ClientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientCount
}
