package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-latch-core/internal/event"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-latch-core/internal/reconcile"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// Pusher issues reconciliation pushes. Satisfied by *reconcile.Reconciler.
type Pusher interface {
	Push(ctx context.Context, slotID int, override bool) error
}

// SlotStore is the slice of the slot repository the monitor needs.
type SlotStore interface {
	All(ctx context.Context) ([]slot.Slot, error)
	SetDesiredStatus(ctx context.Context, id int, status slot.Status) error
}

// EventPublisher receives slot lifecycle events.
type EventPublisher interface {
	Publish(e event.Event)
}

// Monitor evaluates slot schedules on a fixed interval and turns window
// transitions into pushes.
//
// Entering the window with desired state enabled pushes the credential
// and emits schedule_started. Passing the end forces desired disabled,
// pushes, and emits schedule_ended. Ticks never overlap: a tick still
// running when the next fires is skipped, not queued. One slot's failure
// is logged and retried next tick; it never blocks the rest of the pass.
type Monitor struct {
	repo   SlotStore
	pusher Pusher
	events EventPublisher
	log    *logging.Logger

	interval time.Duration

	// now is the clock for window evaluation. Overridable in tests.
	now func() time.Time

	running atomic.Bool

	// phases holds each scheduled slot's phase as of the last tick.
	// Only touched from within a tick, which never runs concurrently.
	phases map[int]slot.Phase
}

// NewMonitor creates a schedule monitor.
func NewMonitor(repo SlotStore, pusher Pusher, events EventPublisher, interval time.Duration, log *logging.Logger) *Monitor {
	return &Monitor{
		repo:     repo,
		pusher:   pusher,
		events:   events,
		log:      log.With("component", "schedule"),
		interval: interval,
		now:      time.Now,
		phases:   make(map[int]slot.Phase),
	}
}

// Run evaluates schedules until the context is cancelled. An initial
// evaluation runs immediately so a restart mid-window converges without
// waiting a full interval.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("schedule monitor started", "interval", m.interval)

	m.tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("schedule monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick evaluates every scheduled slot once. Re-entrant calls are skipped.
func (m *Monitor) tick(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		m.log.Warn("previous schedule pass still running, skipping tick")
		return
	}
	defer m.running.Store(false)

	slots, err := m.repo.All(ctx)
	if err != nil {
		m.log.Error("loading slots for schedule pass", "error", err)
		return
	}

	now := m.now().UTC()
	seen := make(map[int]bool, len(slots))

	for i := range slots {
		s := &slots[i]
		if s.Schedule == nil || !s.Claimed() {
			delete(m.phases, s.ID)
			continue
		}
		seen[s.ID] = true

		if err := m.evaluate(ctx, s, now); err != nil {
			m.log.Warn("schedule evaluation failed, will retry next tick",
				"slot", s.ID,
				"error", err,
			)
			continue
		}
		// Phase is recorded only after a successful pass so a failed
		// transition (push error) retriggers its event next tick.
		m.phases[s.ID] = s.Schedule.PhaseAt(now)
	}

	// Forget slots whose schedule was removed since the last pass.
	for id := range m.phases {
		if !seen[id] {
			delete(m.phases, id)
		}
	}
}

// evaluate converges one slot with its window. Events fire only on phase
// transitions; the convergence pushes themselves are idempotent across
// ticks.
func (m *Monitor) evaluate(ctx context.Context, s *slot.Slot, now time.Time) error {
	phase := s.Schedule.PhaseAt(now)
	prev, known := m.phases[s.ID]

	switch phase {
	case slot.PhaseWithin:
		if s.DesiredStatus != slot.StatusEnabled {
			return nil
		}
		if reconcile.SyncStatus(s) == reconcile.StateSynced {
			return nil
		}
		if err := m.pusher.Push(ctx, s.ID, false); err != nil {
			return fmt.Errorf("pushing on window open: %w", err)
		}
		// A slot first seen mid-window counts as an open transition: a
		// restart loses the recorded phase, and a slot needing the push
		// above means the window's start was never acted on. An already
		// synced slot returns earlier and stays quiet.
		if !known || prev != slot.PhaseWithin {
			m.events.Publish(event.New(event.TypeScheduleStarted, s.ID, nil))
		}
		return nil

	case slot.PhaseAfter:
		if s.DesiredStatus == slot.StatusEnabled {
			if err := m.repo.SetDesiredStatus(ctx, s.ID, slot.StatusDisabled); err != nil {
				return fmt.Errorf("disabling on window close: %w", err)
			}
			if err := m.pusher.Push(ctx, s.ID, false); err != nil {
				return fmt.Errorf("pushing on window close: %w", err)
			}
			m.events.Publish(event.New(event.TypeScheduleEnded, s.ID, nil))
			return nil
		}
		// Already disabled; converge the device if a previous push failed.
		if reconcile.SyncStatus(s) == reconcile.StateSynced {
			return nil
		}
		if err := m.pusher.Push(ctx, s.ID, false); err != nil {
			return fmt.Errorf("re-pushing after window close: %w", err)
		}
		return nil

	default: // PhaseBefore: nothing to do until the window opens.
		return nil
	}
}
