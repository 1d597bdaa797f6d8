package protocol

// RejectCode is the one-byte error carried in a REJECT frame. The namespace
// is flat; the same codes are reused across frame types.
type RejectCode uint8

const (
	RejectServerBusy       RejectCode = 0
	RejectServerError      RejectCode = 1
	RejectInvalidPacket    RejectCode = 2
	RejectUsernameLen      RejectCode = 3
	RejectUsernameChar     RejectCode = 4
	RejectPasswordLen      RejectCode = 5
	RejectPasswordChar     RejectCode = 6
	RejectUserDoesNotExist RejectCode = 7
	RejectIncorrectPass    RejectCode = 8
	RejectAdminPriv        RejectCode = 9
	RejectUserExists       RejectCode = 10
	RejectRoomExists       RejectCode = 11
	RejectUserLoggedIn     RejectCode = 12
	RejectAdminSelf        RejectCode = 13
	RejectMaxUsers         RejectCode = 14
	RejectMaxClients       RejectCode = 15
	RejectMaxRooms         RejectCode = 16
	RejectNoRooms          RejectCode = 17
	RejectRoomLen          RejectCode = 18
	RejectRoomChars        RejectCode = 19
	RejectRoomDoesNotExist RejectCode = 21
	RejectRoomInUse        RejectCode = 22
)

var rejectNames = map[RejectCode]string{
	RejectServerBusy:       "SRV_BUSY",
	RejectServerError:      "SRV_ERR",
	RejectInvalidPacket:    "INVALID_PACKET",
	RejectUsernameLen:      "USER_NAME_LEN",
	RejectUsernameChar:     "USER_NAME_CHAR",
	RejectPasswordLen:      "PASS_LEN",
	RejectPasswordChar:     "PASS_CHAR",
	RejectUserDoesNotExist: "USER_DOES_NOT_EXIST",
	RejectIncorrectPass:    "INCORRECT_PASS",
	RejectAdminPriv:        "ADMIN_PRIV",
	RejectUserExists:       "USER_EXISTS",
	RejectRoomExists:       "ROOM_EXISTS",
	RejectUserLoggedIn:     "USER_LOGGED_IN",
	RejectAdminSelf:        "ADMIN_SELF",
	RejectMaxUsers:         "MAX_USERS",
	RejectMaxClients:       "MAX_CLIENTS",
	RejectMaxRooms:         "MAX_ROOMS",
	RejectNoRooms:          "NO_ROOMS",
	RejectRoomLen:          "ROOM_LEN",
	RejectRoomChars:        "ROOM_CHARS",
	RejectRoomDoesNotExist: "ROOM_DOES_NOT_EXIST",
	RejectRoomInUse:        "ROOM_IN_USE",
}

// String returns the protocol name of the code for logs and metrics labels.
func (c RejectCode) String() string {
	if name, ok := rejectNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
