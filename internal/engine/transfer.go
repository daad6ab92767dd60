package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/ledger"
	"github.com/susu3304/debitbot/internal/transfer"
)

// issueCode: sc hands out a one-time code that lets another chat move its
// balances into this one.
func (e *Engine) issueCode(ctx context.Context, req Request) (result, error) {
	if len(req.Args) != 0 {
		return result{}, e.usage(req.Code)
	}
	if e.codes == nil {
		return result{}, ledger.Errorf(ledger.KindForbiddenAction, "Transfers are disabled")
	}
	code, err := e.opts.NewCode()
	if err != nil {
		return result{}, err
	}
	tc := ledger.TransferCode{Code: code, ChatID: req.ChatID, CreatedAt: e.opts.Now()}
	if err := e.codes.IssueTransferCode(ctx, tc); err != nil {
		return result{}, fmt.Errorf("issue transfer code: %w", err)
	}
	return result{msg: fmt.Sprintf("Transfer code: %s (valid for %s)", code, humanDuration(e.opts.TransferCodeTTL))}, nil
}

func humanDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}

// destination is where a transfer goes, plus the code that authorised it.
type destination struct {
	chatID string
	code   string
}

func unknownDestination(target string) error {
	return ledger.Errorf(ledger.KindInvalidArguments, "Unknown transfer code or chat: %s", target)
}

// checkCode reports a used or expired code as InvalidArguments.
func (e *Engine) checkCode(tc *ledger.TransferCode) error {
	if tc.Used {
		return ledger.Errorf(ledger.KindInvalidArguments, "Transfer code already used: %s", tc.Code)
	}
	if tc.Expired(e.opts.Now(), e.opts.TransferCodeTTL) {
		return ledger.Errorf(ledger.KindInvalidArguments, "Transfer code expired: %s", tc.Code)
	}
	return nil
}

// resolveDestination tries target as a transfer code first and as a chat
// display name second. A name only resolves to a chat in the same guild as
// the source chat.
func (e *Engine) resolveDestination(ctx context.Context, sourceID, target string) (destination, error) {
	if code := strings.ToUpper(target); e.codes != nil && transfer.ValidCode(code) {
		tc, err := e.codes.LookupTransferCode(ctx, code)
		switch {
		case err == nil:
			if err := e.checkCode(tc); err != nil {
				return destination{}, err
			}
			return destination{chatID: tc.ChatID, code: tc.Code}, nil
		case !errors.Is(err, ledger.ErrTransferCodeNotFound):
			return destination{}, fmt.Errorf("lookup transfer code: %w", err)
		}
	}
	id, err := e.store.FindChatIDByDisplayName(ctx, target)
	if errors.Is(err, ledger.ErrChatNotFound) {
		return destination{}, unknownDestination(target)
	}
	if err != nil {
		return destination{}, err
	}
	same, err := e.sameGuild(ctx, sourceID, id)
	if err != nil {
		return destination{}, err
	}
	if !same {
		return destination{}, unknownDestination(target)
	}
	return destination{chatID: id}, nil
}

// sameGuild reports whether both chats are registered under one non-empty
// guild.
func (e *Engine) sameGuild(ctx context.Context, a, b string) (bool, error) {
	guild := func(id string) (string, error) {
		c, err := e.store.GetChat(ctx, id)
		if errors.Is(err, ledger.ErrChatNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("get chat: %w", err)
		}
		return c.GuildID, nil
	}
	ga, err := guild(a)
	if err != nil || ga == "" {
		return false, err
	}
	gb, err := guild(b)
	if err != nil {
		return false, err
	}
	return ga == gb, nil
}

type mapping struct {
	from, to string
}

func parseMappings(raw []string) ([]mapping, error) {
	out := make([]mapping, 0, len(raw))
	seen := make(map[string]bool)
	for _, r := range raw {
		parts := strings.Split(r, "-")
		if len(parts) != 2 || !ledger.IsLetters(parts[0]) || !ledger.IsLetters(parts[1]) {
			return nil, ledger.Errorf(ledger.KindInvalidArguments, "Expected from-to, got %s", r)
		}
		m := mapping{from: ledger.NormalizeName(parts[0]), to: ledger.NormalizeName(parts[1])}
		if seen[m.from] {
			return nil, ledger.Errorf(ledger.KindInvalidArguments, "Name repeated: %s", m.from)
		}
		seen[m.from] = true
		out = append(out, m)
	}
	return out, nil
}

// transferState: st TARGET from-to+ adds this chat's balances to the mapped
// members of the destination chat and zeroes this chat. Every member with a
// non-zero balance must be mapped so both ledgers keep a zero sum.
func (e *Engine) transferState(ctx context.Context, req Request) (result, error) {
	if len(req.Args) < 2 {
		return result{}, e.usage(req.Code)
	}
	target := req.Args[0]
	mappings, err := parseMappings(req.Args[1:])
	if err != nil {
		return result{}, err
	}
	dest, err := e.resolveDestination(ctx, req.ChatID, target)
	if err != nil {
		return result{}, err
	}
	if dest.chatID == req.ChatID {
		return result{}, ledger.Errorf(ledger.KindForbiddenAction, "Cannot transfer a chat into itself")
	}

	defer e.locks.lockPair(req.ChatID, dest.chatID)()

	// The code may have been spent while waiting for the locks.
	if dest.code != "" {
		tc, err := e.codes.LookupTransferCode(ctx, dest.code)
		if err != nil {
			return result{}, fmt.Errorf("lookup transfer code: %w", err)
		}
		if err := e.checkCode(tc); err != nil {
			return result{}, err
		}
	}

	source, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	destState, err := e.loadState(ctx, dest.chatID)
	if err != nil {
		return result{}, err
	}

	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if !source.Has(m.from) {
			return result{}, ledger.Errorf(ledger.KindUnknownMember, "Name not on the list: %s", m.from)
		}
		if !destState.Has(m.to) {
			return result{}, ledger.Errorf(ledger.KindUnknownMember, "Name not on the destination list: %s", m.to)
		}
		mapped[m.from] = true
	}
	for _, en := range source.Entries() {
		if !en.Balance.IsZero() && !mapped[en.Name] {
			return result{}, ledger.Errorf(ledger.KindForbiddenAction, "Unmapped member with balance: %s", en.Name)
		}
	}

	for _, m := range mappings {
		destState.Add(m.to, source.Balance(m.from))
	}
	source.Reset()
	if err := destState.CheckRange(); err != nil {
		return result{}, err
	}

	// The code is spent before the save and released if the save fails.
	if dest.code != "" {
		err := e.codes.MarkTransferCodeUsed(ctx, dest.code)
		if errors.Is(err, ledger.ErrTransferCodeNotFound) {
			return result{}, ledger.Errorf(ledger.KindInvalidArguments, "Transfer code expired: %s", dest.code)
		}
		if err != nil {
			return result{}, fmt.Errorf("mark transfer code used: %w", err)
		}
	}
	err = e.store.SaveStates(ctx, map[string]*ledger.Ledger{
		req.ChatID:  source,
		dest.chatID: destState,
	})
	if err != nil {
		if dest.code != "" {
			if rerr := e.codes.ReleaseTransferCode(context.WithoutCancel(ctx), dest.code); rerr != nil {
				e.log.Error("release transfer code failed",
					zap.String("code", dest.code),
					zap.Error(rerr))
			}
		}
		return result{}, fmt.Errorf("save states: %w", err)
	}
	e.appendLog(ctx, req)
	return result{msg: "State transferred", state: source}, nil
}
