// Package doctor runs readiness diagnostics for config, tools, audio, and the analysis service.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/castline/internal/audio"
	"github.com/rbright/castline/internal/config"
	"github.com/rbright/castline/internal/dispatch"
)

const defaultProbeTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Deps lets tests replace live probes.
type Deps struct {
	Dialer      dispatch.Dialer
	SelectAudio func(ctx context.Context, input string, fallback string) (audio.Selection, error)
}

// Run executes environment/config/runtime checks against live dependencies.
func Run(ctx context.Context, cfg config.Loaded) Report {
	return RunWith(ctx, cfg, Deps{})
}

// RunWith executes the checks with injected probes.
func RunWith(ctx context.Context, cfg config.Loaded, deps Deps) Report {
	if deps.SelectAudio == nil {
		deps.SelectAudio = audio.SelectDevice
	}
	if deps.Dialer == nil {
		deps.Dialer = dispatch.WebSocketDialer{HandshakeTimeout: cfg.Config.Service.HandshakeTimeout()}
	}

	checks := []Check{checkConfig(cfg)}

	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkIndicatorBackend(cfg.Config.Indicator)...)
	}
	if cfg.Config.Frames.Enable {
		checks = append(checks, checkCommand(cfg.Config.Frames.CaptureCmd.Argv, "frames.capture_cmd"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config, deps.SelectAudio))
	checks = append(checks, checkServiceHandshake(ctx, cfg.Config.Service, deps.Dialer))

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	if n := len(cfg.Warnings); n > 0 && cfg.Exists {
		message = fmt.Sprintf("%s (%d warning(s): %s)", message, n, cfg.Warnings[0].Message)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkIndicatorBackend(cfg config.IndicatorConfig) []Check {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return []Check{checkBinary("busctl", "desktop notifications use busctl")}
	}
	return []Check{
		checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"),
		checkBinary("hyprctl", "indicator uses hyprctl notify"),
	}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
	check.Name = name
	return check
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.Config,
	selectAudio func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectAudio(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkServiceHandshake opens and cleanly closes one WebSocket to the service.
func checkServiceHandshake(ctx context.Context, cfg config.ServiceConfig, dialer dispatch.Dialer) Check {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return Check{Name: "service.handshake", Pass: false, Message: "service.url is empty"}
	}

	timeout := cfg.HandshakeTimeout()
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.Dial(probeCtx, url)
	if err != nil {
		var handshake *dispatch.HandshakeError
		if errors.As(err, &handshake) {
			return Check{Name: "service.handshake", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", handshake.Status, url)}
		}
		return Check{Name: "service.handshake", Pass: false, Message: fmt.Sprintf("dial %s: %v", url, err)}
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "doctor"),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
	return Check{Name: "service.handshake", Pass: true, Message: fmt.Sprintf("connected to %s", url)}
}
