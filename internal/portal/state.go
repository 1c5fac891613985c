package portal

// State is a step of the portal workflow.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateTokenWait
	StatePollSubmit
	StatePolling
	StateDownloading
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:        "Idle",
	StateSubmitting:  "Submitting",
	StateTokenWait:   "TokenWait",
	StatePollSubmit:  "PollSubmit",
	StatePolling:     "Polling",
	StateDownloading: "Downloading",
	StateDone:        "Done",
	StateFailed:      "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// FailureKind qualifies a Failed run.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTokenNotObtained
	FailureDownloadCanceled
	FailureTimeout
	FailureSessionError
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "None"
	case FailureTokenNotObtained:
		return "TokenNotObtained"
	case FailureDownloadCanceled:
		return "DownloadCanceled"
	case FailureTimeout:
		return "Timeout"
	case FailureSessionError:
		return "SessionError"
	default:
		return "Unknown"
	}
}
