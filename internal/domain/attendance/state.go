package attendance

type State string

const (
	StateNone       State = "NONE"
	StateCheckedIn  State = "CHECKED_IN"
	StateCheckedOut State = "CHECKED_OUT"
	StateBlocked    State = "BLOCKED"
)

// StateOf derives the day state of a record. A nil record is StateNone.
func StateOf(a *Attendance) State {
	switch {
	case a == nil:
		return StateNone
	case a.Status.IsOverride():
		return StateBlocked
	case a.CheckOut != nil:
		return StateCheckedOut
	case a.CheckIn != nil:
		return StateCheckedIn
	default:
		// ABSENT row written by the sweep
		return StateNone
	}
}

// GuardCheckIn returns the reason existing may not accept a check-in, or nil.
func GuardCheckIn(existing *Attendance) error {
	if existing == nil {
		return nil
	}
	if existing.Status.IsOverride() {
		return newStateError(ErrBlocked, existing)
	}
	if existing.CheckOut != nil {
		return newStateError(ErrAlreadyCheckedOut, existing)
	}
	if existing.CheckIn != nil {
		return newStateError(ErrAlreadyCheckedIn, existing)
	}
	return nil
}

// GuardCheckOut returns the reason existing may not accept a check-out, or nil.
func GuardCheckOut(existing *Attendance) error {
	if existing == nil {
		return &StateError{Err: ErrNoRecord}
	}
	if existing.Status.IsOverride() {
		return newStateError(ErrBlocked, existing)
	}
	if existing.CheckIn == nil {
		return newStateError(ErrNotCheckedIn, existing)
	}
	if existing.CheckOut != nil {
		return newStateError(ErrAlreadyCheckedOut, existing)
	}
	return nil
}
