// Package engine executes ledger commands against a Store. It is the only
// place balances change: every command runs inside a per-chat critical
// section, validates before it saves, and appends itself to the chat's log
// when it succeeds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/ledger"
	"github.com/susu3304/debitbot/internal/stats"
	"github.com/susu3304/debitbot/internal/transfer"
)

const separator = "------------------"

// Options bounds ledgers and tunes timing. Zero values fall back to
// DefaultOptions.
type Options struct {
	MaxMembers      int
	MaxGroups       int
	MaxNameLength   int
	TransferCodeTTL time.Duration
	StorageTimeout  time.Duration
	// StatsLogLimit caps how many recent log entries statistics read; 0
	// reads the whole log.
	StatsLogLimit int

	Now     func() time.Time
	NewCode func() (string, error)
	Intn    func(n int) int
}

func DefaultOptions() Options {
	return Options{
		MaxMembers:      40,
		MaxGroups:       15,
		MaxNameLength:   20,
		TransferCodeTTL: 5 * time.Minute,
		StorageTimeout:  10 * time.Second,
		Now:             time.Now,
		NewCode:         transfer.NewCode,
		Intn:            rand.IntN,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxMembers <= 0 {
		o.MaxMembers = d.MaxMembers
	}
	if o.MaxGroups <= 0 {
		o.MaxGroups = d.MaxGroups
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = d.MaxNameLength
	}
	if o.TransferCodeTTL <= 0 {
		o.TransferCodeTTL = d.TransferCodeTTL
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = d.StorageTimeout
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	if o.NewCode == nil {
		o.NewCode = d.NewCode
	}
	if o.Intn == nil {
		o.Intn = d.Intn
	}
	return o
}

// Recorder observes every executed command. Outcome is "ok", "rejected"
// for validation failures or "error".
type Recorder interface {
	ObserveCommand(code, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCommand(string, string, time.Duration) {}

// Request is one command sent from a chat.
type Request struct {
	ChatID   string
	SenderID string
	Code     string
	Args     []string
}

type shape int

const (
	shapePayload shape = iota
	shapeConfirm
	shapeListing
)

type lockMode int

const (
	lockRead lockMode = iota
	lockWrite
	// lockSelf commands take their own locks and log themselves.
	lockSelf
	lockNone
)

type result struct {
	msg   string
	state *ledger.Ledger
}

type command struct {
	usage    string
	shape    shape
	lock     lockMode
	mutating bool
	run      func(ctx context.Context, req Request) (result, error)
	// build is set for undoable transactions.
	build builder
}

type Engine struct {
	store    ledger.Store
	codes    ledger.TransferCodes
	stats    *stats.Registry
	opts     Options
	log      *zap.Logger
	recorder Recorder
	locks    *lockTable
	commands map[string]*command
}

// Option customises an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithStats(r *stats.Registry) Option {
	return func(e *Engine) { e.stats = r }
}

func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o.withDefaults() }
}

func New(store ledger.Store, codes ledger.TransferCodes, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		codes:    codes,
		stats:    stats.Default(),
		opts:     DefaultOptions(),
		log:      zap.NewNop(),
		recorder: nopRecorder{},
		locks:    newLockTable(),
	}
	for _, o := range opts {
		o(e)
	}
	e.commands = e.commandTable()
	return e
}

func (e *Engine) commandTable() map[string]*command {
	help := &command{usage: "h", lock: lockNone, run: e.help}
	return map[string]*command{
		"t":    {usage: "t payer (payee amount)+", shape: shapeListing, lock: lockWrite, mutating: true, build: buildTransaction},
		"td":   {usage: "td payer [weight] (payee [weight])+ total", shape: shapeListing, lock: lockWrite, mutating: true, build: buildSplit(true)},
		"tdex": {usage: "tdex payer (payee [weight])+ total", shape: shapeListing, lock: lockWrite, mutating: true, build: buildSplit(false)},
		"tg":   {usage: "tg payer GROUP total", shape: shapeListing, lock: lockWrite, mutating: true, build: buildGroupSplit(true)},
		"tgex": {usage: "tgex payer GROUP total", shape: shapeListing, lock: lockWrite, mutating: true, build: buildGroupSplit(false)},
		"na":   {usage: "na name+", shape: shapeListing, lock: lockWrite, mutating: true, run: e.addMembers},
		"nr":   {usage: "nr name", shape: shapeListing, lock: lockWrite, mutating: true, run: e.removeMember},
		"nc":   {usage: "nc old new", shape: shapeListing, lock: lockWrite, mutating: true, run: e.renameMember},
		"u":    {usage: "u", shape: shapeListing, lock: lockWrite, mutating: true, run: e.undo},
		"s":    {usage: "s", lock: lockRead, run: e.showState},
		"sum":  {usage: "sum", lock: lockRead, run: e.sum},
		"r":    {usage: "r", lock: lockRead, run: e.randomName},
		"ga":   {usage: "ga GROUP name+", shape: shapeConfirm, lock: lockWrite, mutating: true, run: e.addGroup},
		"gr":   {usage: "gr GROUP", shape: shapeConfirm, lock: lockWrite, mutating: true, run: e.removeGroup},
		"gl":   {usage: "gl", lock: lockRead, run: e.listGroups},
		"sc":   {usage: "sc", lock: lockRead, run: e.issueCode},
		"st":   {usage: "st CODE-or-chat from-to+", shape: shapeListing, lock: lockSelf, mutating: true, run: e.transferState},
		"sf":   {usage: "sf (name value)+", shape: shapeListing, lock: lockWrite, mutating: true, run: e.forceState},
		"sm":   {usage: "sm multiplier", shape: shapeListing, lock: lockWrite, mutating: true, run: e.multiply},
		"sr":   {usage: "sr", shape: shapeListing, lock: lockWrite, mutating: true, run: e.resetState},
		"stat": {usage: "stat [all|summary|name]", lock: lockRead, run: e.stat},
		"h":    help,
		"help": help,
	}
}

// Has reports whether code names a command.
func (e *Engine) Has(code string) bool {
	_, ok := e.commands[strings.ToLower(code)]
	return ok
}

// Codes lists every command code in alphabetical order.
func (e *Engine) Codes() []string {
	out := make([]string, 0, len(e.commands))
	for c := range e.commands {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Execute runs one command and returns the reply text. Validation failures
// come back as *ledger.Error and leave storage untouched; any other error is
// a storage failure.
func (e *Engine) Execute(ctx context.Context, req Request) (reply string, err error) {
	code := strings.ToLower(req.Code)
	cmd, ok := e.commands[code]
	if !ok {
		return "", ledger.Errorf(ledger.KindInvalidCommandFormat, "Unknown command: %s", req.Code)
	}
	req.Code = code

	start := time.Now()
	defer func() {
		e.recorder.ObserveCommand(code, outcome(err), time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
	defer cancel()

	switch cmd.lock {
	case lockWrite:
		defer e.locks.lock(req.ChatID)()
	case lockRead:
		defer e.locks.rlock(req.ChatID)()
	}

	run := cmd.run
	if cmd.build != nil {
		run = func(ctx context.Context, req Request) (result, error) {
			return e.applyTransaction(ctx, req, cmd.build)
		}
	}
	res, err := run(ctx, req)
	if err != nil {
		return "", err
	}
	if cmd.mutating && cmd.lock != lockSelf {
		e.appendLog(ctx, req)
	}
	return e.render(cmd, res), nil
}

func (e *Engine) render(cmd *command, res result) string {
	if cmd.shape != shapeListing || res.state == nil {
		return res.msg
	}
	listing := res.state.Render()
	if listing == "" {
		listing = "Empty :("
	}
	return fmt.Sprintf("%s:\n%s\n%s", res.msg, separator, listing)
}

// appendLog records a committed command. The mutation is already saved, so
// a failure here is logged and the command still succeeds.
func (e *Engine) appendLog(ctx context.Context, req Request) {
	if err := e.store.SaveLog(ctx, req.ChatID, req.SenderID, logLine(req)); err != nil {
		e.log.Error("save log failed",
			zap.String("chat_id", req.ChatID),
			zap.String("code", req.Code),
			zap.Error(err))
	}
}

func logLine(req Request) string {
	if len(req.Args) == 0 {
		return req.Code
	}
	return req.Code + " " + strings.Join(req.Args, " ")
}

func outcome(err error) string {
	var le *ledger.Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &le):
		return "rejected"
	}
	return "error"
}

func (e *Engine) usage(code string) error {
	return ledger.Errorf(ledger.KindInvalidCommandFormat, "Usage: %s", e.commands[code].usage)
}

func (e *Engine) help(_ context.Context, _ Request) (result, error) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, line := range helpLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("Amounts accept arithmetic, e.g. t ana ivo 12.5*3")
	return result{msg: b.String()}, nil
}

var helpLines = []string{
	"t payer (payee amount)+      payer paid each payee's amount",
	"td payer [w] (payee [w])+ total   split total, payer included",
	"tdex payer (payee [w])+ total     split total, payer excluded",
	"tg payer GROUP total         split among a group, payer included",
	"tgex payer GROUP total       split among a group, payer excluded",
	"na name+                     add members",
	"nr name                      remove a member with balance 0",
	"nc old new                   rename a member",
	"u                            undo the last transaction",
	"s                            show balances",
	"sum                          sum of balances",
	"r                            pick a random member",
	"ga GROUP name+               create a group",
	"gr GROUP                     delete a group",
	"gl                           list groups",
	"sc                           issue a transfer code for this chat",
	"st CODE a-b+                 move balances into the chat owning CODE",
	"sf (name value)+             overwrite all balances",
	"sm multiplier                multiply all balances",
	"sr                           reset all balances to 0",
	"stat [all|summary|name]      statistics",
}
