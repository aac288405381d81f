// Package hypr wraps the hyprctl commands castline relies on.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoMonitors is returned when hyprctl reports no outputs.
var ErrNoMonitors = errors.New("hyprctl monitors returned no outputs")

const defaultNotifyColor = "rgb(89b4fa)"

// Notify sends a Hyprland notification payload.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = defaultNotifyColor
	}
	_, err := run(ctx, "--quiet", "dispatch", "notify",
		strconv.Itoa(icon), strconv.Itoa(timeoutMS), color, text)
	return err
}

// DismissNotify clears every active Hyprland notification.
func DismissNotify(ctx context.Context) error {
	_, err := run(ctx, "--quiet", "dispatch", "dismissnotify")
	return err
}

func run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %s: %w", strings.Join(args, " "), err)
		}
		return nil, fmt.Errorf("hyprctl %s: %w (%s)", strings.Join(args, " "), err, trimmed)
	}
	return out, nil
}
