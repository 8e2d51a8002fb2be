package slot

import "time"

// Slot represents one access slot on the lock.
//
// A slot carries two views of the same position in the lock's code table:
// the desired configuration (what the operator wants programmed) and the
// lock-reported mirror (what the device last told us it holds). The mirror
// columns are only ever written from device responses, never from operator
// input, so a failed push can always be diagnosed by comparing the two.
type Slot struct {
	// ID is the slot number on the lock hardware (1-based).
	ID int `json:"id"`

	// Name is the operator-assigned label (e.g. "Cleaner", "Guest flat 2").
	// An empty name on an empty slot means the slot is unclaimed.
	Name string `json:"name"`

	// CredentialType distinguishes keypad PINs from proximity cards.
	CredentialType CredentialType `json:"credential_type"`

	// Desired configuration.
	DesiredCode   string `json:"desired_code"`
	DesiredStatus Status `json:"desired_status"`

	// Lock-reported mirror. Nil until the device has been read at least once.
	LockCode   *string `json:"lock_code,omitempty"`
	LockStatus *Status `json:"lock_status,omitempty"`

	// Schedule is the optional one-shot validity window.
	Schedule *Schedule `json:"schedule,omitempty"`

	// UsageLimit caps the number of accesses before the slot is disabled.
	// Nil means unlimited.
	UsageLimit *int `json:"usage_limit,omitempty"`
	UsageCount int  `json:"usage_count"`

	// NotificationTargets lists recipients interested in this slot's events.
	// Stored and served verbatim; delivery is out of scope for the core.
	NotificationTargets []string `json:"notification_targets,omitempty"`

	// LastUsedAt is the time of the most recent access event.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Claimed reports whether the slot holds a desired configuration.
// Unclaimed slots are free positions the lock may still have occupants in.
func (s *Slot) Claimed() bool {
	return s.Name != "" || s.DesiredCode != ""
}

// Clone returns an independent copy of the slot.
// Slice and pointer fields are duplicated so callers can mutate freely.
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}

	cpy := *s

	if s.LockCode != nil {
		v := *s.LockCode
		cpy.LockCode = &v
	}
	if s.LockStatus != nil {
		v := *s.LockStatus
		cpy.LockStatus = &v
	}
	if s.Schedule != nil {
		sched := *s.Schedule
		if s.Schedule.Start != nil {
			t := *s.Schedule.Start
			sched.Start = &t
		}
		if s.Schedule.End != nil {
			t := *s.Schedule.End
			sched.End = &t
		}
		cpy.Schedule = &sched
	}
	if s.UsageLimit != nil {
		v := *s.UsageLimit
		cpy.UsageLimit = &v
	}
	if s.NotificationTargets != nil {
		cpy.NotificationTargets = make([]string, len(s.NotificationTargets))
		copy(cpy.NotificationTargets, s.NotificationTargets)
	}
	if s.LastUsedAt != nil {
		t := *s.LastUsedAt
		cpy.LastUsedAt = &t
	}

	return &cpy
}

// Status represents a slot's lifecycle state, on either side of the sync.
type Status string

// Status constants.
const (
	// StatusAvailable means the slot position is empty.
	StatusAvailable Status = "available"

	// StatusEnabled means a credential is programmed and active.
	StatusEnabled Status = "enabled"

	// StatusDisabled means a credential is retained locally but must not
	// open the door. On the device a disabled slot reads back as empty.
	StatusDisabled Status = "disabled"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusAvailable, StatusEnabled, StatusDisabled}
}

// CredentialType represents the kind of credential a slot holds.
type CredentialType string

// CredentialType constants.
const (
	CredentialPIN           CredentialType = "pin"
	CredentialProximityCard CredentialType = "proximity_card"
)

// AllCredentialTypes returns all valid credential type values.
func AllCredentialTypes() []CredentialType {
	return []CredentialType{CredentialPIN, CredentialProximityCard}
}

// Schedule is a one-shot validity window for a slot.
// A nil Start means the window has always been open; a nil End means it
// never closes.
type Schedule struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Phase describes where a point in time falls relative to a schedule window.
type Phase string

// Phase constants.
const (
	PhaseBefore Phase = "before"
	PhaseWithin Phase = "within"
	PhaseAfter  Phase = "after"
)

// PhaseAt returns the window phase for the given time.
func (sc *Schedule) PhaseAt(now time.Time) Phase {
	if sc.Start != nil && now.Before(*sc.Start) {
		return PhaseBefore
	}
	if sc.End != nil && !now.Before(*sc.End) {
		return PhaseAfter
	}
	return PhaseWithin
}

// Patch describes a partial update to a slot's desired configuration.
// Nil pointer fields are left unchanged. The Clear flags distinguish
// "remove this value" from "leave it alone".
type Patch struct {
	Name           *string         `json:"name,omitempty"`
	CredentialType *CredentialType `json:"credential_type,omitempty"`
	Code           *string         `json:"code,omitempty"`
	Status         *Status         `json:"status,omitempty"`

	Schedule      *Schedule `json:"schedule,omitempty"`
	ClearSchedule bool      `json:"clear_schedule,omitempty"`

	UsageLimit      *int `json:"usage_limit,omitempty"`
	ClearUsageLimit bool `json:"clear_usage_limit,omitempty"`

	NotificationTargets *[]string `json:"notification_targets,omitempty"`

	ResetUsageCount bool `json:"reset_usage_count,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p *Patch) IsZero() bool {
	return p.Name == nil && p.CredentialType == nil && p.Code == nil &&
		p.Status == nil && p.Schedule == nil && !p.ClearSchedule &&
		p.UsageLimit == nil && !p.ClearUsageLimit &&
		p.NotificationTargets == nil && !p.ResetUsageCount
}
