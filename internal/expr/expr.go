// Package expr turns raw command arguments into member names and amounts,
// evaluating inline arithmetic such as "12.5*3" or "(40+2)/3".
package expr

import (
	"math"
	"strings"
	"unicode"

	"github.com/PaesslerAG/gval"
	"github.com/shopspring/decimal"

	"github.com/susu3304/debitbot/internal/ledger"
)

var arithmetic = gval.Arithmetic()

// Arg is a resolved argument: either a name or a number.
type Arg struct {
	Raw   string
	Name  string
	Value decimal.Decimal
	IsNum bool
}

func (a Arg) String() string {
	if a.IsNum {
		return a.Value.String()
	}
	return a.Name
}

func Num(v decimal.Decimal) Arg {
	return Arg{Raw: v.String(), Value: v, IsNum: true}
}

func Name(raw string) Arg {
	return Arg{Raw: raw, Name: ledger.NormalizeName(raw)}
}

// IsTerm reports whether a token belongs to an arithmetic run: it is
// non-empty and holds no letter. Tokens mixing letters with anything else
// are names.
func IsTerm(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Resolve classifies tokens left to right. Contiguous term tokens are
// concatenated as written and evaluated as one expression; a name token or
// the end of input closes the run. A name directly followed by a bare
// number therefore stays two arguments, while two bare numbers with no name
// between them merge ("2" "30" becomes 230).
func Resolve(tokens []string) ([]Arg, error) {
	out := make([]Arg, 0, len(tokens))
	var run strings.Builder
	flush := func() error {
		if run.Len() == 0 {
			return nil
		}
		v, err := Evaluate(run.String())
		if err != nil {
			return err
		}
		out = append(out, Arg{Raw: run.String(), Value: v, IsNum: true})
		run.Reset()
		return nil
	}
	for _, tok := range tokens {
		if IsTerm(tok) {
			run.WriteString(tok)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		out = append(out, Name(tok))
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate computes an arithmetic expression over + - * / and parentheses.
func Evaluate(expression string) (decimal.Decimal, error) {
	v, err := arithmetic.Evaluate(expression, nil)
	if err != nil {
		return decimal.Zero, ledger.Errorf(ledger.KindInvalidArguments, "Invalid amount: %s", expression)
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return decimal.Zero, ledger.Errorf(ledger.KindInvalidArguments, "Invalid amount: %s", expression)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ledger.Errorf(ledger.KindInvalidArguments, "Invalid amount: %s", expression)
	}
	return decimal.NewFromFloat(f), nil
}

// Fields normalizes a chat message into tokens: anything after '#' is a
// comment, and newlines, tabs and non-breaking spaces separate tokens.
func Fields(text string) []string {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ' '
	})
}

// ParseCommand splits a logged command line into its lower-case code and
// raw arguments.
func ParseCommand(line string) (string, []string) {
	f := Fields(line)
	if len(f) == 0 {
		return "", nil
	}
	return strings.ToLower(f[0]), f[1:]
}
