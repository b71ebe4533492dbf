package console

import "strings"

// Slash command names.
const (
	CmdAdd     = "add"
	CmdDrop    = "drop"
	CmdFiles   = "files"
	CmdUndo    = "undo"
	CmdPlan    = "plan"
	CmdMetrics = "metrics"
	CmdHelp    = "help"
	CmdExit    = "exit"
)

var commandNames = map[string]string{
	CmdAdd:     CmdAdd,
	CmdDrop:    CmdDrop,
	CmdFiles:   CmdFiles,
	CmdUndo:    CmdUndo,
	CmdPlan:    CmdPlan,
	CmdMetrics: CmdMetrics,
	CmdHelp:    CmdHelp,
	CmdExit:    CmdExit,
	"quit":     CmdExit,
}

// Command is a parsed slash command.
type Command struct {
	Name string
	Arg  string
}

// ParseCommand recognises "/name [arg]" for known command names. Anything
// else, including text that merely starts with a path like "/etc/hosts",
// is not a command.
func ParseCommand(line string) (cmd Command, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	word, arg, _ := strings.Cut(line[1:], " ")
	name, known := commandNames[strings.ToLower(word)]
	if !known {
		return Command{}, false
	}
	return Command{Name: name, Arg: strings.TrimSpace(arg)}, true
}

// Help lists the slash commands.
const Help = `Commands:
  /add <path>    add a file to the working set
  /drop <path>   remove a file from the working set
  /files         list the working set
  /undo          revert the last applied diff
  /plan <text>   ask for a plan before any changes
  /metrics       show session metrics
  /help          show this help
  /exit          quit`
