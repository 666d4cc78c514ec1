package chat

import "time"

// MuteRecord is a per (class, user) send restriction.
// A nil Until means the mute has no expiry.
type MuteRecord struct {
	ClassID   string     `json:"class_id"`
	UserID    string     `json:"user_id"`
	Reason    string     `json:"reason,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ActiveAt reports whether the mute still applies at now.
// The expiry instant itself counts as expired.
func (r MuteRecord) ActiveAt(now time.Time) bool {
	return activeAt(r.Until, now)
}

// ClassBlock is a class-wide send restriction.
// A nil Until means the block is indefinite.
type ClassBlock struct {
	ClassID   string     `json:"class_id"`
	Reason    string     `json:"reason,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ActiveAt reports whether the block still applies at now.
func (b ClassBlock) ActiveAt(now time.Time) bool {
	return activeAt(b.Until, now)
}

func activeAt(until *time.Time, now time.Time) bool {
	if until == nil {
		return true
	}
	return now.Before(*until)
}
