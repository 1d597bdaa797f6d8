package protocol

// Identifier charset: printable ASCII 33-126 excluding ':' (the credential
// file separator) and 91-96 ('[' through '`'). Room names are stricter,
// alphanumeric only. Checks are byte-wise on purpose; locale must not
// influence admission.

func validIdentByte(c byte) bool {
	switch {
	case c >= 33 && c <= 47:
		return true
	case c >= '0' && c <= '9':
		return true
	case c >= 59 && c <= 64:
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= 123 && c <= 126:
		return true
	}
	return false
}

// ValidIdentifierChars reports whether every byte of s is admissible in a
// username or password.
func ValidIdentifierChars(s string) bool {
	for i := 0; i < len(s); i++ {
		if !validIdentByte(s[i]) {
			return false
		}
	}
	return true
}

// ValidRoomNameChars reports whether every byte of s is alphanumeric.
func ValidRoomNameChars(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		alnum := (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		if !alnum {
			return false
		}
	}
	return true
}
