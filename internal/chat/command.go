package chat

import "strings"

// Command prefixes understood by the server.
const (
	LoginPrefix  = "login:"
	OnlinePrefix = "users:online"
)

// CommandKind tags a parsed inbound line.
type CommandKind int

const (
	// CommandChat is any line that is not a recognized command.
	CommandChat CommandKind = iota
	// CommandLogin is a "login:<name>" registration request.
	CommandLogin
	// CommandOnline is a "users:online" query.
	CommandOnline
)

func (k CommandKind) String() string {
	switch k {
	case CommandLogin:
		return "login"
	case CommandOnline:
		return "online"
	default:
		return "chat"
	}
}

// Command is one inbound line after parsing. Text always holds the line as
// received so that a registered user can send "login:..." as plain chat.
type Command struct {
	Kind CommandKind
	Name string
	Text string
}

// ParseCommand classifies a decoded line. Prefixes are matched against the
// line exactly as received; only the login payload is trimmed.
func ParseCommand(line string) Command {
	switch {
	case strings.HasPrefix(line, LoginPrefix):
		name := strings.TrimRight(line[len(LoginPrefix):], "\r\n")
		return Command{Kind: CommandLogin, Name: strings.TrimSpace(name), Text: line}
	case strings.HasPrefix(line, OnlinePrefix):
		return Command{Kind: CommandOnline, Text: line}
	default:
		return Command{Kind: CommandChat, Text: line}
	}
}
