package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-latch-core/internal/event"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-latch-core/internal/lock"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// EventPublisher receives slot lifecycle events.
// Satisfied by *event.Publisher.
type EventPublisher interface {
	Publish(e event.Event)
}

// Reconciler drives the repository's desired state and the device's
// actual state towards each other.
//
// Push moves desired state onto the device; Pull absorbs device state
// into the repository. Operations on the same slot are serialized with a
// per-slot mutex, so a push and a schedule transition cannot interleave
// on one slot while different slots proceed independently. The gateway
// additionally serializes the physical link itself.
//
// Cancellation is honored only before the first device command of an
// operation. Once a command has been issued the sequence runs to
// completion under context.WithoutCancel: a half-applied write with no
// verification is worse than a slow one.
type Reconciler struct {
	repo    slot.Repository
	gateway lock.Gateway
	events  EventPublisher
	log     *logging.Logger

	bounds  slot.CodeBounds
	settle  time.Duration
	retries int

	// now is the clock for schedule-window checks. Overridable in tests.
	now func() time.Time

	mu    sync.Mutex
	slots map[int]*sync.Mutex
}

// Options configures a Reconciler.
type Options struct {
	// CodeBounds is the PIN length policy for push validation.
	CodeBounds slot.CodeBounds

	// SettleInterval is the initial wait before the first verify read.
	// Doubles on each subsequent attempt.
	SettleInterval time.Duration

	// VerifyRetries is the number of verify reads before giving up.
	VerifyRetries int
}

// NewReconciler creates a reconciler.
func NewReconciler(repo slot.Repository, gateway lock.Gateway, events EventPublisher, opts Options, log *logging.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		gateway: gateway,
		events:  events,
		log:     log.With("component", "reconcile"),
		bounds:  opts.CodeBounds,
		settle:  opts.SettleInterval,
		retries: opts.VerifyRetries,
		now:     time.Now,
		slots:   make(map[int]*sync.Mutex),
	}
}

// lockSlot acquires the per-slot mutex and returns its release func.
func (r *Reconciler) lockSlot(slotID int) func() {
	r.mu.Lock()
	m, ok := r.slots[slotID]
	if !ok {
		m = &sync.Mutex{}
		r.slots[slotID] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Push programs the slot's desired state into the device and verifies it.
//
// An already-synced slot results in a read-only push: the mirror is
// refreshed and no write is issued. Returns ErrValidation, ErrSlotProtected,
// ErrVerificationFailed, or a lock gateway error.
func (r *Reconciler) Push(ctx context.Context, slotID int, override bool) error {
	release := r.lockSlot(slotID)
	defer release()

	s, err := r.repo.Get(ctx, slotID)
	if err != nil {
		return fmt.Errorf("loading slot %d: %w", slotID, err)
	}

	if err := slot.ValidateForPush(s, r.bounds); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// A slot outside its window may only be disabled. Enabling it early is
	// an operator mistake; the schedule monitor flips it at the boundary.
	if s.DesiredStatus == slot.StatusEnabled && s.Schedule != nil {
		if phase := s.Schedule.PhaseAt(r.now().UTC()); phase != slot.PhaseWithin {
			return fmt.Errorf("%w: slot %d enabled outside schedule window", ErrValidation, slotID)
		}
	}

	// Last point at which cancellation is honored.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("push aborted before device contact: %w", err)
	}
	dctx := context.WithoutCancel(ctx)

	read, err := r.gateway.Read(dctx, slotID)
	if err != nil {
		return fmt.Errorf("reading slot %d before push: %w", slotID, err)
	}

	if r.confirmed(s, read) {
		r.log.Debug("slot already synced, refreshing mirror", "slot", slotID)
		return r.recordObserved(dctx, slotID, read)
	}

	if d := CanWrite(s, read, override); !d.Allowed {
		r.log.Warn("push refused", "slot", slotID, "reason", d.Reason, "device_code_present", read.Code != "")
		return fmt.Errorf("%w: %s", ErrSlotProtected, d.Reason)
	}

	// A disabled claim is erased from the device rather than written
	// disabled: the lock holds no dormant entries, only the repository
	// keeps the credential for re-enable.
	issue := func(ctx context.Context) error {
		return r.gateway.Clear(ctx, slotID)
	}
	if s.Claimed() && s.DesiredStatus != slot.StatusDisabled {
		issue = func(ctx context.Context) error {
			return r.gateway.Write(ctx, slotID, s.DesiredCode, s.DesiredStatus)
		}
	}

	return r.converge(dctx, s, issue)
}

// Pull reads the device's state for a slot and absorbs it into the
// repository. Never writes to the device. Returns the updated slot.
func (r *Reconciler) Pull(ctx context.Context, slotID int) (*slot.Slot, error) {
	release := r.lockSlot(slotID)
	defer release()

	s, err := r.repo.Get(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("loading slot %d: %w", slotID, err)
	}

	read, err := r.gateway.Read(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("reading slot %d: %w", slotID, err)
	}

	return r.absorb(ctx, s, read)
}

// PullAll pulls every slot, continuing past per-slot failures.
// The returned error joins the individual failures, if any.
func (r *Reconciler) PullAll(ctx context.Context) error {
	slots, err := r.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("loading slots: %w", err)
	}

	var errs []error
	for i := range slots {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := r.Pull(ctx, slots[i].ID); err != nil {
			r.log.Warn("pull failed", "slot", slots[i].ID, "error", err)
			errs = append(errs, fmt.Errorf("slot %d: %w", slots[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

// ClearSlot releases the slot in the repository and erases it on the
// device, verifying the device confirms the erase.
func (r *Reconciler) ClearSlot(ctx context.Context, slotID int) error {
	release := r.lockSlot(slotID)
	defer release()

	if _, err := r.repo.Get(ctx, slotID); err != nil {
		return fmt.Errorf("loading slot %d: %w", slotID, err)
	}

	if err := r.repo.Clear(ctx, slotID); err != nil {
		return fmt.Errorf("clearing slot %d: %w", slotID, err)
	}

	// Last point at which cancellation is honored. The repository clear
	// above is safe to leave behind: the next push converges the device.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("clear aborted before device contact: %w", err)
	}
	dctx := context.WithoutCancel(ctx)

	cleared, err := r.repo.Get(dctx, slotID)
	if err != nil {
		return fmt.Errorf("reloading slot %d: %w", slotID, err)
	}
	if err := r.converge(dctx, cleared, func(ctx context.Context) error {
		return r.gateway.Clear(ctx, slotID)
	}); err != nil {
		return err
	}

	r.events.Publish(event.New(event.TypeSlotCleared, slotID, nil))
	return nil
}

// converge issues the device command, waits for the device to settle,
// and re-reads to confirm the slot reached its desired state. A failed
// attempt re-issues the command before the next read. The settle wait
// doubles per attempt to give slow locks time to commit. On exhaustion
// the last observation (if any) is persisted so the mirror reflects
// reality, and ErrVerificationFailed is returned.
func (r *Reconciler) converge(ctx context.Context, s *slot.Slot, issue func(context.Context) error) error {
	wait := r.settle
	var last *lock.ReadResult

	for attempt := 1; attempt <= r.retries; attempt++ {
		if err := issue(ctx); err != nil {
			// A first-attempt failure means the device never got the
			// command; report the gateway error as the push failure.
			if attempt == 1 {
				return fmt.Errorf("pushing slot %d: %w", s.ID, err)
			}
			r.log.Warn("re-issuing device command failed",
				"slot", s.ID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		time.Sleep(wait)
		wait *= 2

		read, err := r.gateway.Read(ctx, s.ID)
		if err != nil {
			r.log.Warn("verify read failed",
				"slot", s.ID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		last = &read

		if r.confirmed(s, read) {
			r.log.Info("push verified", "slot", s.ID, "attempts", attempt)
			return r.recordObserved(ctx, s.ID, read)
		}
		r.log.Warn("device state stale after push",
			"slot", s.ID,
			"attempt", attempt,
		)
	}

	if last != nil {
		if err := r.recordObserved(ctx, s.ID, *last); err != nil {
			r.log.Error("recording last observation", "slot", s.ID, "error", err)
		}
	}

	r.events.Publish(event.New(event.TypePushVerificationFailed, s.ID, map[string]any{
		"attempts": r.retries,
	}))
	return fmt.Errorf("%w: slot %d after %d attempts", ErrVerificationFailed, s.ID, r.retries)
}

// confirmed reports whether the device read matches the slot's desired
// state. Unclaimed slots and disabled claims are confirmed by an empty
// device slot; proximity-card slots compare status only.
func (r *Reconciler) confirmed(s *slot.Slot, read lock.ReadResult) bool {
	if !s.Claimed() || s.DesiredStatus == slot.StatusDisabled {
		return !read.Occupied()
	}
	if read.Status != s.DesiredStatus {
		return false
	}
	if s.CredentialType == slot.CredentialProximityCard {
		return true
	}
	return read.Code == s.DesiredCode
}

// recordObserved writes a device observation into the mirror columns.
func (r *Reconciler) recordObserved(ctx context.Context, slotID int, read lock.ReadResult) error {
	var code *string
	status := read.Status
	if read.Occupied() {
		c := read.Code
		if c != "" {
			code = &c
		}
	} else {
		status = slot.StatusAvailable
	}

	if err := r.repo.SetLockState(ctx, slotID, code, &status); err != nil {
		return fmt.Errorf("recording lock state for slot %d: %w", slotID, err)
	}
	return nil
}

// absorb merges a device read into the repository record.
//
// Three shapes of device state require more than a mirror update:
// an unclaimed slot with an occupant is a discovery (credential adopted,
// PIN-shaped codes as PINs, anything else as a proximity card); a
// proximity-card claim whose device code turns out PIN-shaped is promoted
// to a PIN claim (the card identifier hid a keypad code all along).
func (r *Reconciler) absorb(ctx context.Context, s *slot.Slot, read lock.ReadResult) (*slot.Slot, error) {
	switch {
	case !read.Occupied():
		if err := r.recordObserved(ctx, s.ID, read); err != nil {
			return nil, err
		}

	case !s.Claimed():
		ct := slot.CredentialProximityCard
		if slot.PINShaped(read.Code) {
			ct = slot.CredentialPIN
		}
		r.log.Info("adopting device credential",
			"slot", s.ID,
			"credential_type", ct,
		)
		if err := r.repo.AdoptDeviceCredential(ctx, s.ID, ct, read.Code, read.Status); err != nil {
			return nil, fmt.Errorf("adopting credential in slot %d: %w", s.ID, err)
		}

	case s.CredentialType == slot.CredentialProximityCard && slot.PINShaped(read.Code):
		r.log.Info("promoting proximity claim to pin", "slot", s.ID)
		if err := r.repo.AdoptDeviceCredential(ctx, s.ID, slot.CredentialPIN, read.Code, read.Status); err != nil {
			return nil, fmt.Errorf("promoting slot %d: %w", s.ID, err)
		}

	default:
		if err := r.recordObserved(ctx, s.ID, read); err != nil {
			return nil, err
		}
	}

	return r.repo.Get(ctx, s.ID)
}
