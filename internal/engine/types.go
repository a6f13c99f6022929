package engine

// LevelType marks which side of a tree a Level sits on. Stop-order
// trees reuse this: a buy-stop level is typed Ask (it activates the
// same way a crossing ask would), a sell-stop level is typed Bid.
type LevelType uint8

const (
	Bid LevelType = iota
	Ask
)

func (t LevelType) String() string {
	if t == Bid {
		return "Bid"
	}
	return "Ask"
}

// UpdateKind classifies a LevelUpdate notification (see reporter.go).
type UpdateKind uint8

const (
	UpdateNone UpdateKind = iota
	UpdateAdd
	UpdateUpdate
	UpdateDelete
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateAdd:
		return "Add"
	case UpdateDelete:
		return "Delete"
	case UpdateUpdate:
		return "Update"
	default:
		return "None"
	}
}
