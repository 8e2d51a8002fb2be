package slot

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxNameLength = 100

	// minPINShapeLength is the discovery heuristic for telling PINs apart
	// from proximity card identifiers read back from the device. Card IDs
	// contain non-digits or are shorter than any keypad PIN can be.
	minPINShapeLength = 4

	maxNotificationTargets = 20
)

// CodeBounds holds the configured PIN length limits in digits.
type CodeBounds struct {
	Min int
	Max int
}

// DefaultCodeBounds matches the keypad firmware's accepted range.
var DefaultCodeBounds = CodeBounds{Min: 4, Max: 8}

// ValidateCode checks that a PIN code is numeric and within length bounds.
func ValidateCode(code string, b CodeBounds) error {
	if code == "" {
		return fmt.Errorf("%w: code cannot be empty", ErrInvalidCode)
	}
	if len(code) < b.Min || len(code) > b.Max {
		return fmt.Errorf("%w: code must be %d-%d digits", ErrInvalidCode, b.Min, b.Max)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: code must contain only digits", ErrInvalidCode)
		}
	}
	return nil
}

// PINShaped reports whether a device-reported code looks like a keypad PIN.
// Used during pull to classify discovered occupants: anything with a
// non-digit character or shorter than a minimum PIN is a proximity card ID.
func PINShaped(code string) bool {
	if len(code) < minPINShapeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateName checks that a slot name is within length limits.
// Empty names are valid: they mark the slot unclaimed.
func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) != len(name) {
		return fmt.Errorf("%w: name has leading or trailing whitespace", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateStatus checks that a status value is recognised.
func ValidateStatus(status Status) error {
	switch status {
	case StatusAvailable, StatusEnabled, StatusDisabled:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
}

// ValidateCredentialType checks that a credential type is recognised.
func ValidateCredentialType(ct CredentialType) error {
	switch ct {
	case CredentialPIN, CredentialProximityCard:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCredentialType, ct)
}

// ValidateSchedule checks that a schedule window is well formed.
func ValidateSchedule(sc *Schedule) error {
	if sc == nil {
		return nil
	}
	if sc.Start == nil && sc.End == nil {
		return fmt.Errorf("%w: schedule needs a start or an end", ErrInvalidSchedule)
	}
	if sc.Start != nil && sc.End != nil && !sc.Start.Before(*sc.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidSchedule)
	}
	return nil
}

// ValidatePatch checks every field a patch sets.
func ValidatePatch(p *Patch, b CodeBounds) error {
	if p == nil {
		return fmt.Errorf("%w: nil patch", ErrInvalidSlot)
	}
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.CredentialType != nil {
		if err := ValidateCredentialType(*p.CredentialType); err != nil {
			return err
		}
	}
	if p.Code != nil && *p.Code != "" {
		// Proximity card IDs are device-enrolled and arrive via pull, so
		// operator-entered codes are always validated as PINs.
		ct := CredentialPIN
		if p.CredentialType != nil {
			ct = *p.CredentialType
		}
		if ct == CredentialPIN {
			if err := ValidateCode(*p.Code, b); err != nil {
				return err
			}
		}
	}
	if p.Status != nil {
		if err := ValidateStatus(*p.Status); err != nil {
			return err
		}
	}
	if p.Schedule != nil {
		if p.ClearSchedule {
			return fmt.Errorf("%w: schedule set and cleared in same patch", ErrInvalidSchedule)
		}
		if err := ValidateSchedule(p.Schedule); err != nil {
			return err
		}
	}
	if p.UsageLimit != nil {
		if p.ClearUsageLimit {
			return fmt.Errorf("%w: usage limit set and cleared in same patch", ErrInvalidSlot)
		}
		if *p.UsageLimit < 1 {
			return fmt.Errorf("%w: usage limit must be at least 1", ErrInvalidSlot)
		}
	}
	if p.NotificationTargets != nil && len(*p.NotificationTargets) > maxNotificationTargets {
		return fmt.Errorf("%w: too many notification targets (max %d)", ErrInvalidSlot, maxNotificationTargets)
	}
	return nil
}

// ValidateForPush checks that a slot's desired configuration can be
// programmed onto the device. Called before any device traffic so an
// invalid slot never consumes the command link.
func ValidateForPush(s *Slot, b CodeBounds) error {
	if s.DesiredStatus != StatusEnabled {
		return nil
	}
	if s.DesiredCode == "" {
		return fmt.Errorf("%w: enabled slot has no code", ErrInvalidCode)
	}
	if s.CredentialType == CredentialPIN {
		return ValidateCode(s.DesiredCode, b)
	}
	return nil
}
