package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders build metadata for `castline version`.
func String() string {
	return "castline " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies castline in the WebSocket handshake.
func UserAgent() string {
	return "castline/" + Version
}
