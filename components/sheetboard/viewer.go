package sheetboard

import (
	"strings"

	"github.com/google/uuid"
)

// SessionCookie names the cookie that carries the viewer's session id.
const SessionCookie = "sheetboard_session"

// NewSessionID returns a fresh anonymous session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id looks like an id issued by NewSessionID.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}
