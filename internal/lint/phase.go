package lint

// Phase is one state of the orchestrator's phase-sequential progress
// state machine: INIT, TRAVERSE, PREPROCESS, SHRED, MERGE,
// PRE_SHUTDOWN, SUMMARY. The orchestrator notifies formatters at each
// transition via Formatter.OnStateChange.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseTraverse
	PhasePreprocess
	PhaseShred
	PhaseMerge
	PhasePreShutdown
	PhaseSummary
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseTraverse:
		return "TRAVERSE"
	case PhasePreprocess:
		return "PREPROCESS"
	case PhaseShred:
		return "SHRED"
	case PhaseMerge:
		return "MERGE"
	case PhasePreShutdown:
		return "PRE_SHUTDOWN"
	case PhaseSummary:
		return "SUMMARY"
	default:
		return "UNKNOWN"
	}
}
