package hypr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Monitor is one output as reported by `hyprctl -j monitors`.
type Monitor struct {
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Focused bool   `json:"focused"`
}

// QueryMonitors lists the compositor outputs.
func QueryMonitors(ctx context.Context) ([]Monitor, error) {
	output, err := run(ctx, "-j", "monitors")
	if err != nil {
		return nil, err
	}

	var monitors []Monitor
	if err := json.Unmarshal(output, &monitors); err != nil {
		return nil, fmt.Errorf("decode hyprctl monitors json: %w", err)
	}
	for i := range monitors {
		monitors[i].Name = strings.TrimSpace(monitors[i].Name)
	}
	return monitors, nil
}

// QueryFocusedMonitor returns the focused monitor name, or the first output when none is focused.
func QueryFocusedMonitor(ctx context.Context) (string, error) {
	monitors, err := QueryMonitors(ctx)
	if err != nil {
		return "", err
	}
	if len(monitors) == 0 {
		return "", ErrNoMonitors
	}
	for _, mon := range monitors {
		if mon.Focused {
			return mon.Name, nil
		}
	}
	return monitors[0].Name, nil
}
