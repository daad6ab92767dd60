package commands

import (
	"strings"

	"github.com/susu3304/debitbot/internal/expr"
)

// ParseLine splits a prefixed chat message into a command code and its
// arguments. ok is false when the message is not addressed to the bot.
func ParseLine(prefix, content string) (code string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	code, args = expr.ParseCommand(content[len(prefix):])
	if code == "" {
		return "", nil, false
	}
	return code, args, true
}
