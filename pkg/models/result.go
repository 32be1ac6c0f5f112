package models

import "time"

// Result is the structured outcome of one detection and recognition pass
type Result struct {
	FrameID     string    `json:"frame_id"`
	Timestamp   time.Time `json:"timestamp"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	DetectionMS int64     `json:"detection_ms"`
	Lines       []Line    `json:"lines"`
	Matches     []Match   `json:"matches"`
}

// Line is one recognized text line
type Line struct {
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

// Word carries its axis-aligned bounding box as [left, top, right, bottom]
// in source image pixels
type Word struct {
	Text string     `json:"text"`
	Rect [4]float64 `json:"rect"`
}

// Match lists dictionary candidates for a line that was long enough to be searched.
// Candidates is empty, never null, when nothing matched.
type Match struct {
	Line       string   `json:"line"`
	Candidates []string `json:"candidates"`
}
