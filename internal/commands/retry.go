package commands

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"
)

// replyWithRetry sends one reply, retrying once on network timeouts.
func replyWithRetry(ctx context.Context, s MessageSender, m *discordgo.MessageCreate, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference(), discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTimeout(err) {
			return err
		}
		time.Sleep(time.Duration(300+rand.IntN(500)) * time.Millisecond)
	}
	return lastErr
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
