package models

// FrameRequest carries a raw pixel buffer. Pixels is base64 in JSON.
type FrameRequest struct {
	Width    int    `json:"width" binding:"required,gt=0"`
	Height   int    `json:"height" binding:"required,gt=0"`
	Channels int    `json:"channels,omitempty"`
	Pixels   []byte `json:"pixels" binding:"required"`
}

// FrameAccepted acknowledges a frame stored for the sampler
type FrameAccepted struct {
	Status string `json:"status"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DroppedResponse is returned when a frame was not processed
type DroppedResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// MatchRequest asks the fuzzy matcher directly
type MatchRequest struct {
	Text string `json:"text" binding:"required"`
}

// MatchResponse lists ranked candidates
type MatchResponse struct {
	Query   string           `json:"query"`
	Matches []MatchCandidate `json:"matches"`
}

// MatchCandidate is a dictionary entry with its similarity score
type MatchCandidate struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// StatusResponse reports the controller state machine and counters
type StatusResponse struct {
	Status       string `json:"status"`
	Engine       string `json:"engine,omitempty"`
	Passes       uint64 `json:"passes"`
	DroppedBusy  uint64 `json:"dropped_busy"`
	DroppedReady uint64 `json:"dropped_not_ready"`
	Failures     uint64 `json:"failures"`
	Timeouts     uint64 `json:"timeouts"`
	LastError    string `json:"last_error,omitempty"`
	Dictionary   int    `json:"dictionary_entries"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
