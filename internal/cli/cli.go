// Package cli turns argv into one castline command.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandToggle   Command = "toggle"
	CommandStop     Command = "stop"
	CommandStatus   Command = "status"
	CommandMessages Command = "messages"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandToggle:   {},
	CommandStop:     {},
	CommandStatus:   {},
	CommandMessages: {},
	CommandDevices:  {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

// jsonCommands accept --json.
var jsonCommands = map[Command]struct{}{
	CommandStatus:   {},
	CommandMessages: {},
	CommandDevices:  {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	JSON       bool
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	seenCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case arg == "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--json":
			parsed.JSON = true
		case arg == "--config":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			path := strings.TrimPrefix(arg, "--config=")
			if strings.TrimSpace(path) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = path
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			if seenCommand {
				return Parsed{}, fmt.Errorf("unexpected argument %q after command %q", arg, parsed.Command)
			}
			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			seenCommand = true
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
		}
	}

	if parsed.JSON {
		if _, ok := jsonCommands[parsed.Command]; !ok && !parsed.ShowHelp {
			return Parsed{}, fmt.Errorf("--json is not supported by %s", parsed.Command)
		}
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--json] <command>

Commands:
  toggle    Start a capture session, or stop the running one
  stop      Stop the running session after its final segment
  status    Print session and connection state
  messages  Print analysis messages received by the running session
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/castline/config.jsonc)
  --json          Print status, messages, or devices as JSON
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
