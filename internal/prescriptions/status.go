package prescriptions

type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusDispensed Status = "Dispensed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusApproved: {
		StatusDispensed: true,
	},
}

func CanTransition(from, to Status) bool {
	next, ok := validNext[from]
	if !ok {
		return false
	}
	return next[to]
}

// source returns the status a prescription must hold to move to to. Every
// target in validNext has exactly one source, which the review and dispense
// updates use as their guard.
func source(to Status) (Status, bool) {
	for from, next := range validNext {
		if next[to] {
			return from, true
		}
	}
	return "", false
}

// Decision is a pharmacist's review outcome.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}
