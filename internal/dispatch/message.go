package dispatch

import (
	"fmt"
	"strings"
)

// Kind discriminates classified inbound messages.
type Kind string

const (
	KindResult   Kind = "result"
	KindAnalysis Kind = "analysis"
	KindError    Kind = "error"
	KindPing     Kind = "ping"
)

// DefaultErrorText is shown when the service reports an error without a message.
const DefaultErrorText = "The analysis service reported an error"

// Message is one classified inbound frame. The variant set is closed.
type Message interface {
	Kind() Kind
	isMessage()
}

// TextResult is a human-readable result line produced from a segment.
type TextResult struct {
	Text string
}

func (TextResult) Kind() Kind { return KindResult }
func (TextResult) isMessage() {}

// AnalysisResult is the structured outcome of one analyzed video frame.
type AnalysisResult struct {
	FrameHeight       int
	FrameWidth        int
	AverageBrightness float64
	MotionDetected    bool
	DominantColor     string
	EdgeDensity       float64
	Commentary        string
}

func (AnalysisResult) Kind() Kind { return KindAnalysis }
func (AnalysisResult) isMessage() {}

// Summary renders the analysis as one display line.
func (a AnalysisResult) Summary() string {
	parts := make([]string, 0, 5)
	if a.FrameWidth > 0 && a.FrameHeight > 0 {
		parts = append(parts, fmt.Sprintf("frame %dx%d", a.FrameWidth, a.FrameHeight))
	}
	parts = append(parts, fmt.Sprintf("brightness %.1f", a.AverageBrightness))
	if a.MotionDetected {
		parts = append(parts, "motion")
	} else {
		parts = append(parts, "still")
	}
	if a.DominantColor != "" {
		parts = append(parts, "color "+a.DominantColor)
	}
	if a.EdgeDensity > 0 {
		parts = append(parts, fmt.Sprintf("edges %.2f", a.EdgeDensity))
	}

	line := "[screen] " + strings.Join(parts, ", ")
	if commentary := strings.TrimSpace(a.Commentary); commentary != "" {
		line += ": " + commentary
	}
	return line
}

// ErrorNotice is a failure reported by the service.
type ErrorNotice struct {
	Type    string
	Message string
}

func (ErrorNotice) Kind() Kind { return KindError }
func (ErrorNotice) isMessage() {}

// Text returns the message to display, falling back to DefaultErrorText.
func (e ErrorNotice) Text() string {
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	return DefaultErrorText
}

// ControlPing is the service heartbeat. It is answered and never forwarded.
type ControlPing struct{}

func (ControlPing) Kind() Kind { return KindPing }
func (ControlPing) isMessage() {}
