package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/riverside-fc/backend/internal/ratelimit"
)

// Link resolution failures, checked in this order.
var (
	ErrInvalidLink          = errors.New("attendance: empty token")
	ErrEventNotFound        = errors.New("attendance: no event for token")
	ErrLinkExpired          = errors.New("attendance: token expired")
	ErrUnsupportedEventType = errors.New("attendance: event does not take attendance")
)

// Submission validation failures.
var (
	ErrNameRequired       = errors.New("attendance: attendee name required")
	ErrAgeBracketRequired = errors.New("attendance: age bracket required")
	ErrInvalidAgeBracket  = errors.New("attendance: unknown age bracket")
)

// ErrRateLimited matches any *LimitError.
var ErrRateLimited = errors.New("attendance: rate limited")

// LimitError reports how long the caller has to wait.
type LimitError struct {
	Remaining time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("attendance: rate limited for %s", e.Remaining)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

var messages = map[error]string{
	ErrInvalidLink:          "Invalid link",
	ErrEventNotFound:        "Event not found or link expired",
	ErrLinkExpired:          "This attendance link has expired. Please contact the admin for a new link.",
	ErrUnsupportedEventType: "This event type does not support attendance tracking",
	ErrNameRequired:         "Please enter your name",
	ErrAgeBracketRequired:   "Please select an age bracket",
	ErrInvalidAgeBracket:    "Please select a valid age bracket",
}

// Message returns the text shown to the person using the link.
func Message(err error) string {
	var le *LimitError
	if errors.As(err, &le) {
		return ratelimit.WaitMessage("check-in attempts", le.Remaining)
	}
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "Something went wrong. Please try again."
}
