package design

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Expr is a parsed reference expression over reporter aliases.
type Expr interface {
	// Eval computes the expression from per-alias intensities. A missing alias yields NaN.
	Eval(values map[string]float64) float64
	// Aliases lists the aliases the expression reads, sorted and distinct.
	Aliases() []string
	String() string
}

// Const is a numeric constant such as the "1" reference of unnormalized designs.
type Const float64

func (c Const) Eval(map[string]float64) float64 { return float64(c) }
func (c Const) Aliases() []string               { return nil }
func (c Const) String() string                  { return strconv.FormatFloat(float64(c), 'g', -1, 64) }

// Alias reads one reporter channel by its alias.
type Alias string

func (a Alias) Eval(values map[string]float64) float64 {
	v, ok := values[string(a)]
	if !ok {
		return math.NaN()
	}
	return v
}
func (a Alias) Aliases() []string { return []string{string(a)} }
func (a Alias) String() string    { return string(a) }

// Binary is an arithmetic operation.
type Binary struct {
	Op          byte // one of + - * /
	Left, Right Expr
}

func (b Binary) Eval(values map[string]float64) float64 {
	l, r := b.Left.Eval(values), b.Right.Eval(values)
	switch b.Op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	default:
		return l / r
	}
}
func (b Binary) Aliases() []string { return mergeAliases(b.Left, b.Right) }
func (b Binary) String() string {
	return fmt.Sprintf("(%s %c %s)", b.Left, b.Op, b.Right)
}

// Call applies a summary function to its arguments.
type Call struct {
	Func string // mean, sum or median
	Args []Expr
}

func (c Call) Eval(values map[string]float64) float64 {
	xs := make([]float64, len(c.Args))
	for i, a := range c.Args {
		xs[i] = a.Eval(values)
	}
	switch c.Func {
	case "sum":
		return floats.Sum(xs)
	case "median":
		return median(xs)
	default:
		return stat.Mean(xs, nil)
	}
}
func (c Call) Aliases() []string { return mergeAliases(c.Args...) }
func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Func, strings.Join(args, ", "))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	for _, v := range s {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func mergeAliases(exprs ...Expr) []string {
	seen := make(map[string]bool)
	for _, e := range exprs {
		for _, a := range e.Aliases() {
			seen[a] = true
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

var functions = map[string]string{
	"mean":    "mean",
	"avg":     "mean",
	"average": "mean",
	"sum":     "sum",
	"median":  "median",
}

// UnknownAliasError reports an expression word that is neither an alias nor a number.
type UnknownAliasError struct {
	Alias string
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("unknown reporter alias %q", e.Alias)
}

// Parse builds an expression tree. Words naming one of aliases become Alias nodes,
// other numeric words become constants, anything else is an *UnknownAliasError.
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = "-" unary | factor
//	factor = word | func "(" expr { "," expr } ")" | "(" expr ")"
func Parse(src string, aliases map[string]bool) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, aliases: aliases}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("unexpected %q in %q", p.toks[p.pos], src)
	}
	return e, nil
}

func tokenize(src string) ([]string, error) {
	var toks []string
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case strings.IndexByte("+-*/(),", c) >= 0:
			toks = append(toks, string(c))
			i++
		case isWordByte(c):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			toks = append(toks, src[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in %q", c, src)
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return toks, nil
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.'
}

type parser struct {
	toks    []string
	pos     int
	aliases map[string]bool
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *parser) expect(tok string) error {
	if p.peek() != tok {
		return fmt.Errorf("expected %q, found %q", tok, p.peek())
	}
	p.pos++
	return nil
}

func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == "+" || op == "-"; op = p.peek() {
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op[0], Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) term() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == "*" || op == "/"; op = p.peek() {
		p.pos++
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op[0], Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.peek() == "-" {
		p.pos++
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Binary{Op: '-', Left: Const(0), Right: e}, nil
	}
	return p.factor()
}

func (p *parser) factor() (Expr, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of expression")
	case tok == "(":
		p.pos++
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		return e, p.expect(")")
	case !isWordByte(tok[0]):
		return nil, fmt.Errorf("unexpected %q", tok)
	}
	p.pos++

	if fn, ok := functions[strings.ToLower(tok)]; ok && p.peek() == "(" && !p.aliases[tok] {
		p.pos++
		var args []Expr
		for {
			a, err := p.expr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek() != "," {
				break
			}
			p.pos++
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return Call{Func: fn, Args: args}, nil
	}

	if p.aliases[tok] {
		return Alias(tok), nil
	}
	if v, err := strconv.ParseFloat(tok, 64); err == nil {
		return Const(v), nil
	}
	return nil, &UnknownAliasError{Alias: tok}
}
