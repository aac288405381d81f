package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// ErrMalformedMessage reports an inbound text frame that could not be classified.
var ErrMalformedMessage = errors.New("malformed inbound message")

const (
	pingText = "ping"
	pongText = "pong"
)

type envelope struct {
	Type  string          `json:"type"`
	Text  *string         `json:"text"`
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type analysisPayload struct {
	FrameSize         []int         `json:"frame_size"`
	AverageBrightness float64       `json:"average_brightness"`
	MotionDetected    bool          `json:"motion_detected"`
	DominantColor     string        `json:"dominant_color"`
	EdgeDensity       float64       `json:"edge_density"`
	Commentary        string        `json:"commentary"`
	Success           *bool         `json:"success"`
	Text              string        `json:"text"`
	Error             *errorPayload `json:"error"`
}

// Classify maps one inbound frame to a Message.
// Binary frames yield (nil, nil).
func Classify(frameType int, data []byte) (Message, error) {
	switch frameType {
	case websocket.BinaryMessage:
		return nil, nil
	case websocket.TextMessage:
	default:
		return nil, fmt.Errorf("%w: unexpected frame type %d", ErrMalformedMessage, frameType)
	}

	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == pingText {
		return ControlPing{}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch strings.ToLower(strings.TrimSpace(env.Type)) {
	case "ping":
		return ControlPing{}, nil
	case "result", "message":
		if env.Text == nil {
			return nil, fmt.Errorf("%w: %s without text", ErrMalformedMessage, env.Type)
		}
		return TextResult{Text: *env.Text}, nil
	case "analysis", "screen_analysis":
		return classifyAnalysis(env)
	case "error":
		notice := ErrorNotice{}
		if env.Error != nil {
			notice.Type = env.Error.Type
			notice.Message = env.Error.Message
		}
		return notice, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, env.Type)
	}
}

func classifyAnalysis(env envelope) (Message, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformedMessage, env.Type)
	}

	var payload analysisPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: analysis data: %v", ErrMalformedMessage, err)
	}

	if payload.Success != nil && !*payload.Success {
		notice := ErrorNotice{Type: "analysis_error"}
		if payload.Error != nil {
			notice.Type = payload.Error.Type
			notice.Message = payload.Error.Message
		}
		return notice, nil
	}

	if len(payload.FrameSize) != 0 && len(payload.FrameSize) != 2 {
		return nil, fmt.Errorf("%w: frame_size needs [height, width]", ErrMalformedMessage)
	}

	result := AnalysisResult{
		AverageBrightness: payload.AverageBrightness,
		MotionDetected:    payload.MotionDetected,
		DominantColor:     payload.DominantColor,
		EdgeDensity:       payload.EdgeDensity,
		Commentary:        payload.Commentary,
	}
	if result.Commentary == "" {
		result.Commentary = payload.Text
	}
	if len(payload.FrameSize) == 2 {
		result.FrameHeight = payload.FrameSize[0]
		result.FrameWidth = payload.FrameSize[1]
	}
	return result, nil
}
