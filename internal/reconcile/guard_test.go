package reconcile

import (
	"testing"

	"github.com/nerrad567/gray-latch-core/internal/lock"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

func TestCanWrite(t *testing.T) {
	claimed := &slot.Slot{ID: 1, Name: "Guest", DesiredCode: "1234", DesiredStatus: slot.StatusEnabled}
	unclaimed := &slot.Slot{ID: 2, DesiredStatus: slot.StatusAvailable}

	empty := lock.ReadResult{Status: slot.StatusAvailable}
	occupied := lock.ReadResult{Code: "9999", Status: slot.StatusEnabled}

	tests := []struct {
		name     string
		slot     *slot.Slot
		read     lock.ReadResult
		override bool
		want     bool
	}{
		{"empty device slot", unclaimed, empty, false, true},
		{"claimed slot, occupied device", claimed, occupied, false, true},
		{"unclaimed slot, occupied device", unclaimed, occupied, false, false},
		{"unclaimed slot, occupied device, override", unclaimed, occupied, true, true},
		{"claimed slot, empty device", claimed, empty, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanWrite(tt.slot, tt.read, tt.override)
			if d.Allowed != tt.want {
				t.Errorf("CanWrite() = %v (%s), want allowed=%v", d.Allowed, d.Reason, tt.want)
			}
			if d.Reason == "" {
				t.Error("Decision.Reason should never be empty")
			}
		})
	}
}
