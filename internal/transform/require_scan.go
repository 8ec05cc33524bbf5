package transform

import (
	"strconv"
	"strings"

	"bungae.dev/bungae/internal/module"
)

type callSite struct {
	wordStart        int // start of the "require"/"import" callee identifier
	argStart, argEnd int // byte span of the bare string literal, quotes included
	specifier        string
	kind             module.DependencyKind
}

// rewriteRequires finds every require(<string>) and import(<string>) call
// in already-transpiled CommonJS code and rewrites it to the canonical
// require(dependencyMap[i]) form, returning the rewritten code and the
// deduplicated, source-ordered dependency list those indices refer to.
//
// This is a small single-pass scanner rather than a full parse. esbuild's
// Transform already did the real parsing; what's left is finding call-site
// string literals, which only requires tracking comment/string/template
// state well enough not to match inside one.
func rewriteRequires(code string) (string, []module.Dependency) {
	var sites []callSite
	indexOf := map[string]int{}
	var deps []module.Dependency

	i := 0
	n := len(code)
	for i < n {
		c := code[i]

		switch c {
		case '/':
			if i+1 < n && code[i+1] == '/' {
				i += 2
				for i < n && code[i] != '\n' {
					i++
				}
				continue
			}
			if i+1 < n && code[i+1] == '*' {
				i += 2
				for i+1 < n && !(code[i] == '*' && code[i+1] == '/') {
					i++
				}
				i += 2
				continue
			}
			i++
		case '\'', '"':
			i = skipString(code, i)
		case '`':
			i = skipTemplate(code, i)
		default:
			if isIdentStart(c) {
				start := i
				for i < n && isIdentPart(code[i]) {
					i++
				}
				word := code[start:i]
				if (word == "require" || word == "import") && !precededByDot(code, start) {
					if site, next, matched := matchCallArg(code, i, word); matched {
						site.wordStart = start
						sites = append(sites, site)
						i = next
						continue
					}
				}
				continue
			}
			i++
		}
	}

	for _, s := range sites {
		if _, ok := indexOf[s.specifier]; !ok {
			indexOf[s.specifier] = len(deps)
			deps = append(deps, module.Dependency{Specifier: s.specifier, Kind: s.kind})
		}
	}

	var b strings.Builder
	last := 0
	for _, s := range sites {
		idx := indexOf[s.specifier]
		if s.kind == module.KindAsyncRequire {
			// A dynamic import() resolves synchronously through the same
			// require; the runtime has no separate async loader.
			b.WriteString(code[last:s.wordStart])
			b.WriteString("require(")
		} else {
			b.WriteString(code[last:s.argStart])
		}
		b.WriteString("dependencyMap[")
		b.WriteString(strconv.Itoa(idx))
		b.WriteString("]")
		last = s.argEnd
	}
	b.WriteString(code[last:])

	return b.String(), deps
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func precededByDot(code string, pos int) bool {
	j := pos - 1
	for j >= 0 && (code[j] == ' ' || code[j] == '\t' || code[j] == '\n') {
		j--
	}
	return j >= 0 && code[j] == '.'
}

// matchCallArg expects pos to sit right after the "require"/"import"
// identifier. It reports a match only for a call with a single bare
// string-literal argument: require("x") or import("x"), optional whitespace
// allowed around the argument. Anything else (a dynamic expression, a
// template literal with substitutions, multiple arguments) is left alone;
// such call sites aren't rewritten and the surrounding module keeps its raw
// require/import.
func matchCallArg(code string, pos int, word string) (callSite, int, bool) {
	n := len(code)
	j := skipSpace(code, pos)
	if j >= n || code[j] != '(' {
		return callSite{}, 0, false
	}
	j = skipSpace(code, j+1)
	if j >= n || (code[j] != '"' && code[j] != '\'') {
		return callSite{}, 0, false
	}
	quote := code[j]
	argStart := j
	j++
	for j < n && code[j] != quote {
		if code[j] == '\\' {
			j++
		}
		j++
	}
	if j >= n {
		return callSite{}, 0, false
	}
	argEnd := j + 1 // include closing quote
	specifier := unquote(code[argStart:argEnd])

	j = skipSpace(code, argEnd)
	if j >= n || code[j] != ')' {
		return callSite{}, 0, false
	}
	j++ // consume ")"

	kind := module.KindStatic
	if word == "import" {
		kind = module.KindAsyncRequire
	}
	return callSite{argStart: argStart, argEnd: argEnd, specifier: specifier, kind: kind}, j, true
}

func skipSpace(code string, i int) int {
	for i < len(code) && (code[i] == ' ' || code[i] == '\t' || code[i] == '\n' || code[i] == '\r') {
		i++
	}
	return i
}

func unquote(s string) string {
	s = s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			b.WriteByte(s[i])
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func skipString(code string, i int) int {
	quote := code[i]
	i++
	n := len(code)
	for i < n && code[i] != quote {
		if code[i] == '\\' {
			i++
		}
		i++
	}
	if i < n {
		i++
	}
	return i
}

// skipTemplate skips a full template literal, including any ${...}
// substitutions, which may themselves contain nested template literals.
func skipTemplate(code string, i int) int {
	i++ // opening backtick
	n := len(code)
	for i < n && code[i] != '`' {
		if code[i] == '\\' {
			i += 2
			continue
		}
		if code[i] == '$' && i+1 < n && code[i+1] == '{' {
			i += 2
			depth := 1
			for i < n && depth > 0 {
				switch code[i] {
				case '{':
					depth++
				case '}':
					depth--
				case '`':
					i = skipTemplate(code, i)
					continue
				case '"', '\'':
					i = skipString(code, i)
					continue
				}
				i++
			}
			continue
		}
		i++
	}
	if i < n {
		i++
	}
	return i
}
