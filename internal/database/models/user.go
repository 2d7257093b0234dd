package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults applied at registration and backfilled by migrations.
const (
	DefaultNotificationTime  = "09:50"
	DefaultTimeZone          = "Europe/Moscow"
	DefaultCookieProbability = 40
)

var (
	// ErrInvalidTime is returned for notification times not matching HH:MM (24h).
	ErrInvalidTime = errors.New("invalid time, expected HH:MM")
	// ErrUnknownTimezone is returned for strings that are not IANA zone names.
	ErrUnknownTimezone = errors.New("unknown timezone")
)

var timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// AwaitingState says how the next free-text message or picker callback from
// the user is interpreted. Exactly one state is active at a time; starting a
// new flow overwrites the previous one.
type AwaitingState string

const (
	AwaitingNothing  AwaitingState = ""
	AwaitingTimezone AwaitingState = "timezone"
	AwaitingHour     AwaitingState = "hour"
	AwaitingMinute   AwaitingState = "minute"
)

// HaikuPref is a tri-state opt-out flag: an unset value means the user never
// touched the setting and is treated as opted in.
type HaikuPref string

const (
	HaikuUnset HaikuPref = ""
	HaikuOn    HaikuPref = "on"
	HaikuOff   HaikuPref = "off"
)

// CookieSettings configures the secondary bonus-item roll.
type CookieSettings struct {
	Enabled     bool `bson:"enabled"`
	Probability int  `bson:"probability"`
}

// User is one registered chat's configuration record.
type User struct {
	ChatID           int64          `bson:"chat_id"`
	Username         string         `bson:"username,omitempty"`
	RegisteredAt     time.Time      `bson:"registered_at"`
	NotificationTime string         `bson:"notification_time"`
	TimeZone         string         `bson:"time_zone"`
	Awaiting         AwaitingState  `bson:"awaiting,omitempty"`
	SelectedHour     *int           `bson:"selected_hour,omitempty"`
	Haiku            HaikuPref      `bson:"haiku,omitempty"`
	Cookie           CookieSettings `bson:"cookie"`
}

// HaikuEnabled resolves the tri-state flag: unset counts as enabled.
// This is the single read site for the resolution rule.
func (u *User) HaikuEnabled() bool {
	return u.Haiku != HaikuOff
}

// ParseNotificationTime validates s against the 24-hour HH:MM format and
// returns its components. The stored value is only ever written through this
// validation.
func ParseNotificationTime(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if !timeRe.MatchString(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	return hour, minute, nil
}

// FormatNotificationTime renders picker selections as a storable HH:MM value.
func FormatNotificationTime(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ValidateTimeZone checks that tz is a loadable IANA location.
func ValidateTimeZone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, tz)
	}
	return loc, nil
}
