package scenario

import "strings"

// part is either a static literal, a ${var}/$var reference, or a
// ${func(arg1,arg2)} generator call.
type part struct {
	literal bool
	text    string // literal text, set when literal == true
	ref     string // variable name, or function name when isFunc
	braced  bool   // true for ${name}, false for bare $name
	isFunc  bool   // true for ${name(args)}
	args    []string
}

// Template is a pre-parsed request-template string (path, body, or a
// header value). Parsing happens once when a Scenario is loaded; only
// substitution runs per request. ${name}/$name resolve against the
// current Context first, falling back to the builtin generators;
// ${name(args)} always calls a generator directly. An unresolved
// placeholder is left literal.
type Template struct {
	parts  []part
	static bool
}

// Compile parses input into a Template. Call once per template string.
func Compile(input string) *Template {
	if strings.IndexByte(input, '$') == -1 {
		return &Template{parts: []part{{literal: true, text: input}}, static: true}
	}

	t := &Template{}
	remaining := input
	for remaining != "" {
		i := strings.IndexByte(remaining, '$')
		if i == -1 {
			t.parts = append(t.parts, part{literal: true, text: remaining})
			break
		}
		if i > 0 {
			t.parts = append(t.parts, part{literal: true, text: remaining[:i]})
		}
		rest := remaining[i+1:]
		if strings.HasPrefix(rest, "{") {
			end := strings.IndexByte(rest, '}')
			if end == -1 {
				// Unterminated ${ — treat the rest as literal.
				t.parts = append(t.parts, part{literal: true, text: remaining[i:]})
				break
			}
			inner := rest[1:end]
			if fname, rawArgs, ok := parseFuncCall(inner); ok {
				t.parts = append(t.parts, part{ref: fname, isFunc: true, args: parseArgs(rawArgs), braced: true})
			} else {
				t.parts = append(t.parts, part{ref: inner, braced: true})
			}
			remaining = rest[end+1:]
			continue
		}
		name, tail := bareName(rest)
		if name == "" {
			// Lone '$' with no identifier following — literal.
			t.parts = append(t.parts, part{literal: true, text: "$"})
			remaining = rest
			continue
		}
		t.parts = append(t.parts, part{ref: name, braced: false})
		remaining = tail
	}
	return t
}

func bareName(s string) (name, tail string) {
	n := 0
	for n < len(s) && isIdentByte(s[n]) {
		n++
	}
	return s[:n], s[n:]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// parseFuncCall recognizes "name(arg1,arg2)" inside a ${...} braced
// reference, returning the function name and parsed argument list.
func parseFuncCall(inner string) (name, args string, ok bool) {
	open := strings.IndexByte(inner, '(')
	if open == -1 || !strings.HasSuffix(inner, ")") {
		return "", "", false
	}
	fname := inner[:open]
	for i := 0; i < len(fname); i++ {
		if !isIdentByte(fname[i]) {
			return "", "", false
		}
	}
	if fname == "" {
		return "", "", false
	}
	return fname, inner[open+1 : len(inner)-1], true
}

// Execute renders the template against ctx. Unresolved placeholders are
// left literal (e.g. "${missing}" or "$missing").
func (t *Template) Execute(ctx *Context) string {
	if t.static {
		return t.parts[0].text
	}

	size := 0
	for _, p := range t.parts {
		if p.literal {
			size += len(p.text)
		}
	}

	var sb strings.Builder
	sb.Grow(size + 32)
	for _, p := range t.parts {
		if p.literal {
			sb.WriteString(p.text)
			continue
		}
		if p.isFunc {
			if fn, ok := generatorFuncs[p.ref]; ok {
				sb.WriteString(fn(p.args))
				continue
			}
			sb.WriteString("${")
			sb.WriteString(p.ref)
			sb.WriteByte('}')
			continue
		}
		if v, ok := ctx.Get(p.ref); ok {
			sb.WriteString(v)
			continue
		}
		if p.braced {
			sb.WriteString("${")
			sb.WriteString(p.ref)
			sb.WriteByte('}')
		} else {
			sb.WriteByte('$')
			sb.WriteString(p.ref)
		}
	}
	return sb.String()
}

// Raw returns the original literal string for templates known to contain
// no placeholders (used to detect static header maps cheaply).
func (t *Template) Raw() (string, bool) {
	if t.static {
		return t.parts[0].text, true
	}
	return "", false
}
