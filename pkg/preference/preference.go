// Package preference resolves per-recipient, per-type, per-channel delivery
// eligibility for notifications.
package preference

import (
	"errors"
	"fmt"
	"time"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

var (
	// ErrNotFound is returned when no preference row exists for a
	// recipient. The service layer treats this as a signal to lazily
	// create defaults.
	ErrNotFound = errors.New("preference not found")

	// ErrValidation is returned when a preference update fails its
	// invariants.
	ErrValidation = errors.New("preference validation failed")
)

// DigestFrequency controls how often a channel batches notifications.
type DigestFrequency string

const (
	DigestImmediate DigestFrequency = "immediate"
	DigestHourly    DigestFrequency = "hourly"
	DigestDaily     DigestFrequency = "daily"
	DigestWeekly    DigestFrequency = "weekly"
)

// Valid reports whether f is a known frequency.
func (f DigestFrequency) Valid() bool {
	switch f {
	case DigestImmediate, DigestHourly, DigestDaily, DigestWeekly:
		return true
	}
	return false
}

// ChannelSetting holds one channel's delivery configuration.
type ChannelSetting struct {
	Enabled     bool                  `json:"enabled"`
	MinPriority notification.Priority `json:"min_priority"`
	Digest      DigestFrequency       `json:"digest"`
}

// QuietHours is a per-recipient time-of-day window during which only
// critical notifications are delivered. Start and End are "HH:MM" in the
// given IANA timezone; the window may cross midnight.
type QuietHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// Contains reports whether t falls inside the quiet window. An invalid
// timezone falls back to UTC; malformed bounds disable the window.
func (q QuietHours) Contains(t time.Time) bool {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := t.In(loc)

	start, err1 := parseClock(q.Start)
	end, err2 := parseClock(q.End)
	if err1 != nil || err2 != nil {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	if start == end {
		return false
	}
	if start < end {
		return minutes >= start && minutes < end
	}
	// Window crosses midnight, e.g. 22:00-07:00.
	return minutes >= start || minutes < end
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Preference is the one-to-one delivery configuration of a recipient.
type Preference struct {
	Recipient string `json:"recipient"`

	// Enabled is the global flag: when false, no channel fires regardless
	// of the per-channel settings.
	Enabled bool `json:"enabled"`

	Channels map[notification.Channel]ChannelSetting `json:"channels"`

	QuietHours *QuietHours `json:"quiet_hours,omitempty"`

	// TypeOverrides disables or enables specific channels for a
	// notification type, overriding the channel-level default.
	TypeOverrides map[notification.Type]map[notification.Channel]bool `json:"type_overrides,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Default returns the preference applied when a recipient has never
// configured anything: everything on at immediate frequency, no quiet
// hours, SMS reserved for high-priority traffic.
func Default(recipientID string) Preference {
	return Preference{
		Recipient: recipientID,
		Enabled:   true,
		Channels: map[notification.Channel]ChannelSetting{
			notification.ChannelInApp: {Enabled: true, MinPriority: notification.PriorityLow, Digest: DigestImmediate},
			notification.ChannelEmail: {Enabled: true, MinPriority: notification.PriorityLow, Digest: DigestImmediate},
			notification.ChannelPush:  {Enabled: true, MinPriority: notification.PriorityLow, Digest: DigestImmediate},
			notification.ChannelSMS:   {Enabled: false, MinPriority: notification.PriorityHigh, Digest: DigestImmediate},
		},
		UpdatedAt: time.Now(),
	}
}

// Validate checks the invariants required before a preference may be
// persisted.
func (p *Preference) Validate() error {
	if p.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	for ch, setting := range p.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrValidation, ch)
		}
		if !setting.MinPriority.Valid() {
			return fmt.Errorf("%w: invalid min priority for channel %q", ErrValidation, ch)
		}
		if setting.Digest != "" && !setting.Digest.Valid() {
			return fmt.Errorf("%w: unknown digest frequency %q", ErrValidation, setting.Digest)
		}
	}
	for typ, channels := range p.TypeOverrides {
		if !typ.Valid() {
			return fmt.Errorf("%w: unknown notification type %q in overrides", ErrValidation, typ)
		}
		for ch := range channels {
			if !ch.Valid() {
				return fmt.Errorf("%w: unknown channel %q in overrides", ErrValidation, ch)
			}
		}
	}
	if p.QuietHours != nil {
		if _, err := parseClock(p.QuietHours.Start); err != nil {
			return fmt.Errorf("%w: invalid quiet hours start %q", ErrValidation, p.QuietHours.Start)
		}
		if _, err := parseClock(p.QuietHours.End); err != nil {
			return fmt.Errorf("%w: invalid quiet hours end %q", ErrValidation, p.QuietHours.End)
		}
	}
	return nil
}

// ChannelEnabled resolves the effective on/off state for one channel and
// type, applying the global flag, channel flag and per-type override.
func (p *Preference) ChannelEnabled(typ notification.Type, ch notification.Channel) bool {
	if !p.Enabled {
		return false
	}
	setting, ok := p.Channels[ch]
	if !ok || !setting.Enabled {
		return false
	}
	if overrides, ok := p.TypeOverrides[typ]; ok {
		if enabled, ok := overrides[ch]; ok {
			return enabled
		}
	}
	return true
}
