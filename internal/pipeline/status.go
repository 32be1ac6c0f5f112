package pipeline

// Status is the controller state machine:
//
//	Uninitialized -> Initializing -> Ready <-> Busy
//	                              -> Failed
type Status int32

const (
	StatusUninitialized Status = iota
	StatusInitializing
	StatusReady
	StatusBusy
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusBusy:
		return "busy"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets Status appear by name in JSON and logs.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
