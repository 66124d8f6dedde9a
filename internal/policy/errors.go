package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/steamhub/internal/timespec"
)

var (
	// ErrBanned is returned when a command is banned for the user, channel or server.
	ErrBanned = errors.New("command banned")

	// ErrCommandPermissionDenied is returned when the actor lacks a required permission or role.
	ErrCommandPermissionDenied = errors.New("command permission denied")
)

// CooldownError reports that a command is still cooling down for a user.
type CooldownError struct {
	Name      string
	Remaining time.Duration
	Message   string // Rendered cooldown template, may be empty
}

func (e *CooldownError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s on cooldown for %ss", e.Name, timespec.Seconds(e.Remaining))
}
