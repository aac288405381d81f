package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// MonitorPlaceholder in a capture argv is replaced with the focused monitor name.
const MonitorPlaceholder = "{monitor}"

// Grabber produces one encoded still frame per call.
type Grabber interface {
	Grab(ctx context.Context) ([]byte, error)
}

// CommandGrabber runs a capture command and reads the frame from its stdout.
type CommandGrabber struct {
	Argv []string
	// Monitor resolves MonitorPlaceholder. Nil leaves the argv untouched.
	Monitor func(context.Context) (string, error)
}

// Grab implements Grabber.
func (g CommandGrabber) Grab(ctx context.Context) ([]byte, error) {
	argv, err := g.resolve(ctx)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		trimmed := strings.TrimSpace(stderr.String())
		if trimmed == "" {
			return nil, fmt.Errorf("frame command %q failed: %w", argv[0], err)
		}
		return nil, fmt.Errorf("frame command %q failed: %w (%s)", argv[0], err, trimmed)
	}
	return stdout.Bytes(), nil
}

func (g CommandGrabber) resolve(ctx context.Context) ([]string, error) {
	if len(g.Argv) == 0 || strings.TrimSpace(g.Argv[0]) == "" {
		return nil, errors.New("frame command is empty")
	}

	argv := append([]string(nil), g.Argv...)
	for i, arg := range argv {
		if !strings.Contains(arg, MonitorPlaceholder) {
			continue
		}
		if g.Monitor == nil {
			return nil, fmt.Errorf("frame command uses %s but no monitor resolver is configured", MonitorPlaceholder)
		}
		name, err := g.Monitor(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve focused monitor: %w", err)
		}
		argv[i] = strings.ReplaceAll(arg, MonitorPlaceholder, name)
	}
	return argv, nil
}
