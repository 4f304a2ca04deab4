package canonical

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

const indent = "  "

// Print renders doc in canonical form. Definitions keep their source order.
func Print(doc *ast.QueryDocument) string {
	type definition struct {
		pos  int
		text string
	}

	defs := make([]definition, 0, len(doc.Operations)+len(doc.Fragments))
	for i, op := range doc.Operations {
		defs = append(defs, definition{pos: position(op.Position, i), text: printOperation(op)})
	}
	for i, frag := range doc.Fragments {
		defs = append(defs, definition{pos: position(frag.Position, len(doc.Operations)+i), text: printFragmentDefinition(frag)})
	}
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].pos < defs[j].pos })

	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = d.text
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// position orders definitions by source offset, falling back to list order
// for documents built without positions.
func position(p *ast.Position, fallback int) int {
	if p == nil {
		return fallback
	}
	return p.Start
}

func printOperation(op *ast.OperationDefinition) string {
	selections := printSelectionSet(op.SelectionSet)
	if op.Name == "" && len(op.VariableDefinitions) == 0 && len(op.Directives) == 0 && op.Operation == ast.Query {
		return selections
	}

	head := string(op.Operation)
	if op.Name != "" {
		head += " " + op.Name
	}
	head += wrap("(", printVariableDefinitions(op.VariableDefinitions), ")")

	return join([]string{head, printDirectives(op.Directives), selections}, " ")
}

func printVariableDefinitions(defs ast.VariableDefinitionList) string {
	parts := make([]string, len(defs))
	for i, def := range defs {
		s := "$" + def.Variable + ": " + def.Type.String()
		if def.DefaultValue != nil {
			s += " = " + printValue(def.DefaultValue)
		}
		parts[i] = join([]string{s, printDirectives(def.Directives)}, " ")
	}
	return strings.Join(parts, ", ")
}

func printFragmentDefinition(frag *ast.FragmentDefinition) string {
	head := "fragment " + frag.Name + wrap("(", printVariableDefinitions(frag.VariableDefinition), ")")
	return join([]string{
		head,
		"on " + frag.TypeCondition,
		printDirectives(frag.Directives),
		printSelectionSet(frag.SelectionSet),
	}, " ")
}

func printSelectionSet(set ast.SelectionSet) string {
	if len(set) == 0 {
		return ""
	}
	lines := make([]string, 0, len(set))
	for _, sel := range set {
		lines = append(lines, printSelection(sel))
	}
	return "{\n" + indentBlock(strings.Join(lines, "\n")) + "\n}"
}

func printSelection(sel ast.Selection) string {
	switch s := sel.(type) {
	case *ast.Field:
		name := s.Name
		if s.Alias != "" && s.Alias != s.Name {
			name = s.Alias + ": " + s.Name
		}
		name += wrap("(", printArguments(s.Arguments), ")")
		return join([]string{name, printDirectives(s.Directives), printSelectionSet(s.SelectionSet)}, " ")
	case *ast.FragmentSpread:
		return join([]string{"..." + s.Name, printDirectives(s.Directives)}, " ")
	case *ast.InlineFragment:
		return join([]string{
			"...",
			wrap("on ", s.TypeCondition, ""),
			printDirectives(s.Directives),
			printSelectionSet(s.SelectionSet),
		}, " ")
	default:
		return ""
	}
}

func printArguments(args ast.ArgumentList) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.Name + ": " + printValue(arg.Value)
	}
	return strings.Join(parts, ", ")
}

func printDirectives(dirs ast.DirectiveList) string {
	parts := make([]string, len(dirs))
	for i, d := range dirs {
		parts[i] = "@" + d.Name + wrap("(", printArguments(d.Arguments), ")")
	}
	return strings.Join(parts, " ")
}

func printValue(v *ast.Value) string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case ast.Variable:
		return "$" + v.Raw
	case ast.StringValue, ast.BlockValue:
		return quote(v.Raw)
	case ast.ListValue:
		parts := make([]string, len(v.Children))
		for i, child := range v.Children {
			parts[i] = printValue(child.Value)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ast.ObjectValue:
		parts := make([]string, len(v.Children))
		for i, child := range v.Children {
			parts[i] = child.Name + ": " + printValue(child.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		// Int, Float, Boolean, Null and Enum print their raw token.
		return v.Raw
	}
}

// quote renders s as a GraphQL string literal. Block strings are folded into
// ordinary literals so that re-parsing yields the same value.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				const hex = "0123456789abcdef"
				b.WriteString(`\u00`)
				b.WriteByte(hex[r>>4])
				b.WriteByte(hex[r&0xf])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func indentBlock(s string) string {
	return indent + strings.ReplaceAll(s, "\n", "\n"+indent)
}

func wrap(start, s, end string) string {
	if s == "" {
		return ""
	}
	return start + s + end
}

func join(parts []string, sep string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
