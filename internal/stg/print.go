package stg

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joomcode/errorx"
	"github.com/samber/lo"
)

// Printer formats STG programs in the textual notation
//
//	name = {captured} \u {params} -> body
//
// where \u marks updatable forms and \n non-updatable ones.
type Printer struct {
	w   io.Writer
	err error
}

// NewPrinter constructs a printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes the whole program to w.
func Print(w io.Writer, p *Program) error {
	if p == nil {
		return errorx.IllegalArgument.New("nil program")
	}
	pr := NewPrinter(w)
	for _, b := range p.Bindings {
		pr.PrintBinding(b)
	}
	return pr.err
}

// PrintBinding emits a single top-level binding followed by a blank line.
func (p *Printer) PrintBinding(b Binding) {
	p.printf("%s = %s ->\n    ", b.Name, FormHeader(b.Form))
	p.expr(b.Form.Body, 1)
	p.printf("\n\n")
}

// Err returns the first write error, if any.
func (p *Printer) Err() error { return p.err }

// FormHeader renders the "{vs} \u {xs}" part of a lambda form.
func FormHeader(lf *LambdaForm) string {
	if lf == nil {
		return "<nil>"
	}
	flag := `\n`
	if lf.Updatable {
		flag = `\u`
	}
	return braces(lf.Captured) + " " + flag + " " + braces(lf.Params)
}

// ExprString renders an expression on as few lines as its shape allows.
func ExprString(e Expr) string {
	var sb strings.Builder
	pr := NewPrinter(&sb)
	pr.expr(e, 0)
	return sb.String()
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) indent(level int) {
	p.printf("%s", strings.Repeat("    ", level))
}

func (p *Printer) expr(e Expr, level int) {
	switch n := e.(type) {
	case *App:
		p.printf("%s %s", n.Head, braces(lo.Map(n.Args, func(a Atom, _ int) string { return a.String() })))
	case *Lit:
		p.printf("%d", n.Value)
	case *Let:
		if n.Recursive {
			p.printf("letrec ")
		} else {
			p.printf("let ")
		}
		for i, b := range n.Bindings {
			if i > 0 {
				p.indent(level + 1)
			}
			p.printf("%s = %s -> ", b.Name, FormHeader(b.Form))
			p.expr(b.Form.Body, level+1)
			p.printf("\n")
		}
		p.indent(level + 1)
		p.printf("in ")
		p.expr(n.Body, level)
	case *Case:
		p.printf("case ")
		p.expr(n.Scrutinee, level)
		p.printf(" of")
		for _, alt := range n.Alts {
			p.printf("\n")
			p.indent(level + 1)
			switch a := alt.(type) {
			case *CtorAlt:
				p.printf("%s %s -> ", a.Tag, braces(a.Vars))
			case *LitAlt:
				p.printf("%d -> ", a.Value)
			case *DefaultAlt:
				p.printf("%s -> ", a.Var)
			}
			p.expr(alt.AltBody(), level+1)
		}
	case nil:
		p.printf("<nil>")
	default:
		p.printf("<unknown %T>", e)
	}
}

func (a Atom) String() string {
	if a.IsLit {
		return strconv.FormatInt(a.Lit, 10)
	}
	return a.Var
}

func braces(items []string) string {
	if len(items) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(items, ", ") + " }"
}
