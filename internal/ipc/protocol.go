package ipc

// Commands served by the session owner.
const (
	CommandStatus   = "status"
	CommandToggle   = "toggle"
	CommandStop     = "stop"
	CommandMessages = "messages"
)

type Request struct {
	Command string `json:"command"`
}

// Response is one owner reply. Optional fields are set only by commands that report them.
type Response struct {
	OK         bool     `json:"ok"`
	State      string   `json:"state,omitempty"`
	Connection string   `json:"connection,omitempty"`
	SessionID  string   `json:"session_id,omitempty"`
	Live       bool     `json:"live,omitempty"`
	Segments   uint64   `json:"segments,omitempty"`
	Frames     uint64   `json:"frames,omitempty"`
	Messages   []string `json:"messages,omitempty"`
	Notices    []string `json:"notices,omitempty"`
	Message    string   `json:"message,omitempty"`
	Error      string   `json:"error,omitempty"`
}
