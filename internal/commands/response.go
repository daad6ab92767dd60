package commands

import (
	"errors"
	"strings"

	"github.com/susu3304/debitbot/internal/ledger"
)

// MessageLimit is Discord's cap on a message's length.
const MessageLimit = 2000

const genericFailure = "Sorry, I can't process that."

const fence = "```"

// RenderError turns a command failure into reply text. Validation errors are
// shown as they are; anything else gets the generic message.
func RenderError(err error) string {
	var le *ledger.Error
	if errors.As(err, &le) {
		return le.Error()
	}
	return genericFailure
}

// FormatReply wraps text in code blocks, split so each message fits the
// Discord limit.
func FormatReply(text string) []string {
	chunks := Chunk(text, MessageLimit-2*len(fence)-2)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = fence + "\n" + c + "\n" + fence
	}
	return out
}

// Chunk splits text on line boundaries into pieces of at most limit bytes.
// A single longer line is cut.
func Chunk(text string, limit int) []string {
	var (
		chunks []string
		buffer strings.Builder
	)
	flush := func() {
		if buffer.Len() > 0 {
			chunks = append(chunks, buffer.String())
			buffer.Reset()
		}
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := cutPoint(line, limit)
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if buffer.Len() > 0 && buffer.Len()+len(line)+1 > limit {
			flush()
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
	}
	flush()
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}

// cutPoint backs off to a rune boundary.
func cutPoint(s string, limit int) int {
	cut := limit
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return cut
}
