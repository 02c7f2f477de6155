package domain

// Outcome is the result of an admission decision.
type Outcome int

const (
	// OutcomeAccepted means the join or completion was recorded, or had already been.
	OutcomeAccepted Outcome = iota
	// OutcomeFull means every winner slot was already claimed.
	OutcomeFull
	// OutcomeNotFound means the room or participant does not exist or the room is inactive.
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeFull:
		return "full"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Err maps an outcome to its sentinel error, or nil when accepted.
func (o Outcome) Err(notFound error) error {
	switch o {
	case OutcomeFull:
		return ErrRoomFull
	case OutcomeNotFound:
		return notFound
	default:
		return nil
	}
}
