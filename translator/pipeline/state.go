package pipeline

// State is the position of a batch in its translation lifecycle
type State int

const (
	Pending State = iota
	Sent
	Parsed
	RepairSent
	Accepted
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Sent:
		return "sent"
	case Parsed:
		return "parsed"
	case RepairSent:
		return "repair-sent"
	case Accepted:
		return "accepted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
