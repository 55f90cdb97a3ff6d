// Package loader decodes source modules written as YAML documents into
// ast.Module values.
//
// A module lists its definitions; each definition's term is either a scalar
// (an integer literal or a variable name) or a mapping headed by exactly one
// of the keys lam, app, let, match, as or hole:
//
//	module: peano
//	definitions:
//	  - name: zeroes
//	    type: Nat -> List
//	    term:
//	      lam: n
//	      body:
//	        match: n
//	        arms:
//	          - pattern: zero
//	            body: nil
//	          - pattern: succ m
//	            body: {app: cons, args: [0, {app: zeroes, args: [m]}]}
//
// Primitive names must be quoted ("+1", "*"), otherwise YAML reads them as
// numbers or aliases.
package loader

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joomcode/errorx"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/xirelogy/go-quail/internal/ast"
	"github.com/xirelogy/go-quail/internal/token"
)

var (
	Errors = errorx.NewNamespace("loader")

	// ErrDecode is raised for documents that are not valid modules.
	ErrDecode = Errors.NewType("decode")

	// PropertyPosition carries the token.Position of the offending YAML node.
	PropertyPosition = errorx.RegisterProperty("position")
)

type moduleFile struct {
	Module      string    `yaml:"module"`
	Definitions []defFile `yaml:"definitions"`
}

type defFile struct {
	name    string
	typ     string
	term    ast.Term
	pos     token.Position
	namePos token.Position
}

func (d *defFile) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return decodeError(value, "definition must be a mapping")
	}
	d.pos = position(value)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch key.Value {
		case "name":
			if val.Kind != yaml.ScalarNode {
				return decodeError(val, "definition name must be a scalar")
			}
			d.name = strings.TrimSpace(val.Value)
			d.namePos = position(val)
		case "type":
			d.typ = strings.TrimSpace(val.Value)
		case "term":
			term, err := decodeTerm(val)
			if err != nil {
				return err
			}
			d.term = term
		default:
			return decodeError(key, "unknown key %s in definition", key.Value)
		}
	}
	return nil
}

// termNode decodes a term at the point the YAML decoder reaches it, so
// errors surface with the decoder's own context.
type termNode struct {
	term ast.Term
}

func (t *termNode) UnmarshalYAML(value *yaml.Node) error {
	term, err := decodeTerm(value)
	if err != nil {
		return err
	}
	t.term = term
	return nil
}

// LoadFile reads and decodes the module at path. The module name defaults
// to the file name without its extension.
func LoadFile(path string) (*ast.Module, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ErrDecode.Wrap(err, "open %s", path)
	}
	defer file.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mod, err := Load(file, name)
	if err != nil {
		return nil, errorx.Decorate(err, "load %s", path)
	}
	return mod, nil
}

// Load decodes a single module document from r.
func Load(r io.Reader, defaultName string) (*ast.Module, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var raw moduleFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrDecode.New("module is empty")
		}
		if errorx.IsOfType(err, ErrDecode) {
			return nil, err
		}
		return nil, ErrDecode.Wrap(err, "parse module")
	}

	mod := &ast.Module{Name: strings.TrimSpace(raw.Module)}
	if mod.Name == "" {
		mod.Name = defaultName
	}
	seen := make(map[string]bool, len(raw.Definitions))
	for i, d := range raw.Definitions {
		if d.name == "" {
			return nil, positionError(d.pos, "definitions[%d] needs a name", i)
		}
		if seen[d.name] {
			return nil, positionError(d.namePos, "duplicate definition %s", d.name)
		}
		seen[d.name] = true
		if d.term == nil {
			return nil, positionError(d.pos, "definition %s has no term", d.name)
		}
		mod.Definitions = append(mod.Definitions, &ast.Def{
			Name:    d.name,
			Type:    d.typ,
			Term:    d.term,
			NamePos: d.namePos,
		})
	}
	return mod, nil
}

func position(n *yaml.Node) token.Position {
	return token.Position{Line: n.Line, Column: n.Column}
}

func span(n *yaml.Node) token.Span {
	p := position(n)
	return token.Span{Start: p, End: p}
}

func decodeError(n *yaml.Node, format string, args ...any) error {
	return positionError(position(n), format, args...)
}

func positionError(pos token.Position, format string, args ...any) error {
	return ErrDecode.New("%s: "+format, append([]any{pos}, args...)...).
		WithProperty(PropertyPosition, pos)
}

var termHeads = map[string][]string{
	"lam":   {"body"},
	"app":   {"args"},
	"let":   {"be", "in"},
	"match": {"arms"},
	"as":    {"type"},
	"hole":  {"name", "contents"},
}

func decodeTerm(n *yaml.Node) (ast.Term, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeTerm(n.Alias)
	case yaml.ScalarNode:
		return decodeScalar(n)
	case yaml.MappingNode:
		return decodeForm(n)
	case 0:
		return nil, decodeError(n, "missing term")
	default:
		return nil, decodeError(n, "expected a scalar or mapping term but found %s", n.ShortTag())
	}
}

func decodeScalar(n *yaml.Node) (ast.Term, error) {
	switch n.ShortTag() {
	case "!!int":
		k, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, decodeError(n, "integer %s out of range", n.Value)
		}
		return &ast.IntLit{Value: k, PosT: position(n), Sp: span(n)}, nil
	case "!!str", "!!bool":
		name := strings.TrimSpace(n.Value)
		if name == "" {
			return nil, decodeError(n, "empty variable name")
		}
		if strings.ContainsAny(name, " \t") {
			return nil, decodeError(n, "variable %q contains whitespace; use app for applications", name)
		}
		return &ast.Var{Name: name, PosT: position(n), Sp: span(n)}, nil
	default:
		return nil, decodeError(n, "unsupported scalar %s", n.ShortTag())
	}
}

func decodeForm(n *yaml.Node) (ast.Term, error) {
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	head := ""
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if _, dup := fields[key.Value]; dup {
			return nil, decodeError(key, "duplicate key %s", key.Value)
		}
		fields[key.Value] = n.Content[i+1]
		if _, ok := termHeads[key.Value]; ok {
			if head != "" {
				return nil, decodeError(key, "term has both %s and %s", head, key.Value)
			}
			head = key.Value
		}
	}
	if head == "" {
		return nil, decodeError(n, "term mapping needs one of lam, app, let, match, as, hole")
	}
	allowed := termHeads[head]
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if key.Value != head && !lo.Contains(allowed, key.Value) {
			return nil, decodeError(key, "unknown key %s in %s term", key.Value, head)
		}
	}

	switch head {
	case "lam":
		return decodeLam(n, fields)
	case "app":
		return decodeApp(n, fields)
	case "let":
		return decodeLet(n, fields)
	case "match":
		return decodeMatch(n, fields)
	case "as":
		return decodeAs(n, fields)
	default:
		return decodeHole(n, fields)
	}
}

func required(n *yaml.Node, fields map[string]*yaml.Node, key string) (*yaml.Node, error) {
	v, ok := fields[key]
	if !ok {
		return nil, decodeError(n, "missing %s", key)
	}
	return v, nil
}

func decodeLam(n *yaml.Node, fields map[string]*yaml.Node) (ast.Term, error) {
	params, err := decodeNames(fields["lam"])
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, decodeError(n, "lambda needs at least one parameter")
	}
	bodyNode, err := required(n, fields, "body")
	if err != nil {
		return nil, err
	}
	body, err := decodeTerm(bodyNode)
	if err != nil {
		return nil, err
	}
	for i := len(params) - 1; i >= 0; i-- {
		body = &ast.Lam{Param: params[i], Body: body, PosT: position(n), Sp: span(n)}
	}
	return body, nil
}

func decodeApp(n *yaml.Node, fields map[string]*yaml.Node) (ast.Term, error) {
	fn, err := decodeTerm(fields["app"])
	if err != nil {
		return nil, err
	}
	argsNode, err := required(n, fields, "args")
	if err != nil {
		return nil, err
	}
	if argsNode.Kind != yaml.SequenceNode || len(argsNode.Content) == 0 {
		return nil, decodeError(argsNode, "args must be a non-empty sequence")
	}
	args := make([]ast.Term, 0, len(argsNode.Content))
	for _, a := range argsNode.Content {
		arg, err := decodeTerm(a)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &ast.App{Func: fn, Args: args, PosT: position(n), Sp: span(n)}, nil
}

func decodeLet(n *yaml.Node, fields map[string]*yaml.Node) (ast.Term, error) {
	nameNode := fields["let"]
	name := strings.TrimSpace(nameNode.Value)
	if nameNode.Kind != yaml.ScalarNode || name == "" {
		return nil, decodeError(nameNode, "let needs a variable name")
	}
	valueNode, err := required(n, fields, "be")
	if err != nil {
		return nil, err
	}
	bodyNode, err := required(n, fields, "in")
	if err != nil {
		return nil, err
	}
	value, err := decodeTerm(valueNode)
	if err != nil {
		return nil, err
	}
	body, err := decodeTerm(bodyNode)
	if err != nil {
		return nil, err
	}
	return &ast.Let{Name: name, Value: value, Body: body, PosT: position(n), Sp: span(n)}, nil
}

type armFile struct {
	Pattern yaml.Node `yaml:"pattern"`
	Body    termNode  `yaml:"body"`
}

func decodeMatch(n *yaml.Node, fields map[string]*yaml.Node) (ast.Term, error) {
	subject, err := decodeTerm(fields["match"])
	if err != nil {
		return nil, err
	}
	armsNode, err := required(n, fields, "arms")
	if err != nil {
		return nil, err
	}
	if armsNode.Kind != yaml.SequenceNode {
		return nil, decodeError(armsNode, "arms must be a sequence")
	}
	arms := make([]ast.MatchArm, 0, len(armsNode.Content))
	for _, a := range armsNode.Content {
		var raw armFile
		if err := a.Decode(&raw); err != nil {
			if errorx.IsOfType(err, ErrDecode) {
				return nil, err
			}
			return nil, ErrDecode.Wrap(err, "%s: match arm", position(a)).WithProperty(PropertyPosition, position(a))
		}
		pattern, err := decodeNames(&raw.Pattern)
		if err != nil {
			return nil, err
		}
		if len(pattern) == 0 {
			return nil, decodeError(a, "match arm needs a pattern")
		}
		if raw.Body.term == nil {
			return nil, decodeError(a, "match arm %s has no body", pattern[0])
		}
		arms = append(arms, ast.MatchArm{Pattern: pattern, Body: raw.Body.term, Pos: position(a)})
	}
	return &ast.Match{Subject: subject, Arms: arms, PosT: position(n), Sp: span(n)}, nil
}

func decodeAs(n *yaml.Node, fields map[string]*yaml.Node) (ast.Term, error) {
	inner, err := decodeTerm(fields["as"])
	if err != nil {
		return nil, err
	}
	typ := ""
	if t, ok := fields["type"]; ok {
		typ = strings.TrimSpace(t.Value)
	}
	return &ast.As{Term: inner, Type: typ, PosT: position(n), Sp: span(n)}, nil
}

func decodeHole(n *yaml.Node, fields map[string]*yaml.Node) (ast.Term, error) {
	hole := &ast.Hole{PosT: position(n), Sp: span(n)}
	if err := fields["hole"].Decode(&hole.ID); err != nil {
		return nil, decodeError(fields["hole"], "hole id must be an integer")
	}
	if v, ok := fields["name"]; ok {
		hole.Name = strings.TrimSpace(v.Value)
	}
	if v, ok := fields["contents"]; ok {
		hole.Contents = v.Value
	}
	return hole, nil
}

// decodeNames accepts either a whitespace separated scalar or a sequence of
// scalars.
func decodeNames(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeNames(n.Alias)
	case yaml.ScalarNode:
		return strings.Fields(n.Value), nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, decodeError(item, "expected a name but found %s", item.ShortTag())
			}
			name := strings.TrimSpace(item.Value)
			if name == "" {
				return nil, decodeError(item, "empty name")
			}
			out = append(out, name)
		}
		return out, nil
	default:
		return nil, decodeError(n, "expected names but found %s", n.ShortTag())
	}
}
