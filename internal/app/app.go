// Package app dispatches parsed CLI commands onto castline components.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/castline/internal/audio"
	"github.com/rbright/castline/internal/cli"
	"github.com/rbright/castline/internal/config"
	"github.com/rbright/castline/internal/doctor"
	"github.com/rbright/castline/internal/ipc"
	"github.com/rbright/castline/internal/logging"
	"github.com/rbright/castline/internal/version"
)

const (
	binaryName     = "castline"
	forwardTimeout = 220 * time.Millisecond
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx, parsed.JSON)
	case cli.CommandStatus:
		return r.commandStatus(ctx, parsed.JSON)
	case cli.CommandMessages:
		return r.commandMessages(ctx, parsed.JSON)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandToggle:
		return r.commandToggle(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context, asJSON bool) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if asJSON {
		return r.printJSON(devices)
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context, asJSON bool) int {
	resp, running, err := r.query(ctx, ipc.CommandStatus)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if !running || resp.State == "" {
		resp.OK = true
		resp.State = "idle"
	}
	if asJSON {
		return r.printJSON(resp)
	}

	if resp.SessionID == "" {
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}
	mic := "off"
	if resp.Live {
		mic = "live"
	}
	fmt.Fprintf(r.Stdout, "%s connection=%s mic=%s segments=%d frames=%d session=%s\n",
		resp.State, resp.Connection, mic, resp.Segments, resp.Frames, resp.SessionID)
	return 0
}

func (r Runner) commandMessages(ctx context.Context, asJSON bool) int {
	resp, running, err := r.query(ctx, ipc.CommandMessages)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if !running {
		fmt.Fprintf(r.Stderr, "error: no active %s session\n", binaryName)
		return 1
	}
	if asJSON {
		return r.printJSON(resp)
	}

	for _, notice := range resp.Notices {
		fmt.Fprintf(r.Stdout, "! %s\n", notice)
	}
	for _, message := range resp.Messages {
		fmt.Fprintln(r.Stdout, message)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	resp, running, err := r.query(ctx, command)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if !running {
		fmt.Fprintf(r.Stderr, "error: no active %s session\n", binaryName)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// query forwards command to a running owner. running is false when no owner listens.
func (r Runner) query(ctx context.Context, command string) (resp ipc.Response, running bool, err error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if command == ipc.CommandStatus {
			return ipc.Response{}, false, nil
		}
		return ipc.Response{}, false, err
	}
	return forward(ctx, socketPath, command)
}

func forward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Command(ctx, socketPath, command, forwardTimeout)
	if err != nil {
		if errors.Is(err, ipc.ErrNotRunning) {
			return ipc.Response{}, false, nil
		}
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
	}
	if !resp.OK {
		return resp, true, errors.New(resp.Error)
	}
	return resp, true, nil
}

func (r Runner) printJSON(value any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		fmt.Fprintf(r.Stderr, "error: encode json: %v\n", err)
		return 1
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
