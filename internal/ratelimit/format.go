package ratelimit

import (
	"fmt"
	"time"
)

// FormatRemainingTime renders a block duration in whole minutes, rounding up.
func FormatRemainingTime(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	minutes := int((d + time.Minute - 1) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// WaitMessage is the user-facing text for a denied decision.
func WaitMessage(action string, d time.Duration) string {
	return fmt.Sprintf("Too many %s. Please try again in %s.", action, FormatRemainingTime(d))
}
