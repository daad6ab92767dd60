package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/susu3304/debitbot/internal/ledger"
)

func TestStateRoundTripKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	empty, err := s.LoadState(ctx, "c1")
	if err != nil || empty.Len() != 0 {
		t.Fatalf("LoadState() on a new chat = %v, %v", empty, err)
	}

	l := ledger.New()
	l.Set("Zed", decimal.NewFromInt(5))
	l.Set("Ana", decimal.NewFromInt(-5))
	if err := s.SaveState(ctx, "c1", l); err != nil {
		t.Fatal(err)
	}
	l.Set("Ana", decimal.Zero)

	got, _ := s.LoadState(ctx, "c1")
	if names := got.Names(); names[0] != "Zed" || names[1] != "Ana" {
		t.Errorf("Names() = %v, want [Zed Ana]", names)
	}
	if !got.Balance("Ana").Equal(decimal.NewFromInt(-5)) {
		t.Errorf("saved state was aliased: Ana = %s", got.Balance("Ana"))
	}
}

func TestSaveStateAndGroups(t *testing.T) {
	ctx := context.Background()
	s := New()
	l := ledger.New()
	l.Set("Marta", decimal.Zero)
	g := ledger.NewGroups()
	g.Set("TRIP", []string{"Marta"})
	if err := s.SaveStateAndGroups(ctx, "c1", l, g); err != nil {
		t.Fatal(err)
	}
	state, _ := s.LoadState(ctx, "c1")
	groups, _ := s.LoadGroups(ctx, "c1")
	if !state.Has("Marta") || len(groups.Members("TRIP")) != 1 {
		t.Errorf("saved %v / %v", state.Names(), groups.List())
	}
}

func TestLogs(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.LoadLog(ctx, "c1", 0); !errors.Is(err, ledger.ErrNoLog) {
		t.Errorf("LoadLog() on empty = %v, want ErrNoLog", err)
	}
	for _, c := range []string{"na a b", "t a b 1", "t b a 2"} {
		if err := s.SaveLog(ctx, "c1", "u1", c); err != nil {
			t.Fatal(err)
		}
	}

	last, err := s.LoadLog(ctx, "c1", 0)
	if err != nil || last.Command != "t b a 2" {
		t.Fatalf("LoadLog(0) = %v, %v", last, err)
	}
	prev, _ := s.LoadLog(ctx, "c1", 1)
	if prev.Command != "t a b 1" {
		t.Errorf("LoadLog(1) = %q", prev.Command)
	}
	if _, err := s.LoadLog(ctx, "c1", 3); !errors.Is(err, ledger.ErrNoLog) {
		t.Errorf("LoadLog(3) error = %v", err)
	}

	if err := s.MarkUndone(ctx, "c1", last.ID); err != nil {
		t.Fatal(err)
	}
	logs, _ := s.LoadLogs(ctx, "c1", 2)
	if len(logs) != 2 || logs[0].Command != "t a b 1" || !logs[1].Undone {
		t.Errorf("LoadLogs(2) = %+v", logs)
	}
	all, _ := s.LoadLogs(ctx, "c1", 0)
	if len(all) != 3 {
		t.Errorf("LoadLogs(0) returned %d entries", len(all))
	}
}

func TestFindChatIDByDisplayName(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.SaveChat(ctx, ledger.Chat{ID: "1", Title: "flat"})
	_ = s.SaveChat(ctx, ledger.Chat{ID: "2", Title: "trip"})
	_ = s.SaveChat(ctx, ledger.Chat{ID: "3", Title: "trip"})

	if id, err := s.FindChatIDByDisplayName(ctx, "flat"); err != nil || id != "1" {
		t.Errorf("FindChatIDByDisplayName(flat) = %q, %v", id, err)
	}
	if _, err := s.FindChatIDByDisplayName(ctx, "trip"); !errors.Is(err, ledger.ErrDuplicateName) {
		t.Errorf("ambiguous name error = %v", err)
	}
	if _, err := s.FindChatIDByDisplayName(ctx, "none"); !errors.Is(err, ledger.ErrChatNotFound) {
		t.Errorf("missing name error = %v", err)
	}
}

func TestTransferCodes(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	_ = s.IssueTransferCode(ctx, ledger.TransferCode{Code: "ABCD1234", ChatID: "2", CreatedAt: now})
	_ = s.IssueTransferCode(ctx, ledger.TransferCode{Code: "OLD00000", ChatID: "2", CreatedAt: now.Add(-time.Hour)})

	if err := s.MarkTransferCodeUsed(ctx, "ABCD1234"); err != nil {
		t.Fatal(err)
	}
	c, err := s.LookupTransferCode(ctx, "ABCD1234")
	if err != nil || !c.Used || c.ChatID != "2" {
		t.Errorf("LookupTransferCode() = %+v, %v", c, err)
	}

	if err := s.ReleaseTransferCode(ctx, "ABCD1234"); err != nil {
		t.Fatal(err)
	}
	if c, _ := s.LookupTransferCode(ctx, "ABCD1234"); c.Used {
		t.Error("code still used after release")
	}
	if err := s.ReleaseTransferCode(ctx, "NOPE0000"); !errors.Is(err, ledger.ErrTransferCodeNotFound) {
		t.Errorf("ReleaseTransferCode() on a missing code = %v", err)
	}

	n, _ := s.PurgeTransferCodes(ctx, now.Add(-time.Minute))
	if n != 1 {
		t.Errorf("PurgeTransferCodes() = %d, want 1", n)
	}
	if _, err := s.LookupTransferCode(ctx, "OLD00000"); !errors.Is(err, ledger.ErrTransferCodeNotFound) {
		t.Errorf("purged code lookup error = %v", err)
	}
}
