package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var aliases = map[string]string{
	"q":    "quit",
	"h":    "help",
	"s":    "search",
	"o":    "open",
	"acc":  "account",
	"req":  "requests",
	"reqs": "requests",
}

// ParseCommand parses a command string (without the leading ':').
// Short aliases resolve to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}
