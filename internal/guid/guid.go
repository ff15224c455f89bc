package guid

import "github.com/google/uuid"

// Server is the reserved GUID that identifies the broker itself as the
// sender or recipient of a message.
const Server = "00000000-0000-0000-0000-000000000000"

// New returns a fresh random GUID in canonical form.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a GUID. The reserved server GUID is valid.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// IsServer reports whether s denotes the broker itself.
func IsServer(s string) bool {
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u == uuid.Nil
}
