package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const shortLen = 8

// New returns a random UUID assigned on the client. The same id is used for a
// record whether it was created locally or came back from the server.
func New() string {
	return uuid.NewString()
}

// Parse validates id and returns its canonical lowercase form.
func Parse(id string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", id, err)
	}
	return u.String(), nil
}

// Short returns the leading characters of id for table display.
func Short(id string) string {
	if len(id) <= shortLen {
		return id
	}
	return id[:shortLen]
}
