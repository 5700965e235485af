package pipeline

import "strings"

// ExtractTableReferences returns the table-like identifiers that follow FROM
// and JOIN keywords in query, deduplicated case-insensitively, in order of
// appearance.
//
// This is a name-presence heuristic, not a SQL parser. It skips string
// literals and comments, subqueries and table functions, names declared by
// WITH, FROM inside EXTRACT/TRIM/SUBSTRING/OVERLAY/POSITION, and
// IS [NOT] DISTINCT FROM. Comma-separated FROM lists are followed. Malformed
// SQL that happens to mention valid names passes.
func ExtractTableReferences(query string) []string {
	toks := tokenize(query)
	ctes := cteNames(toks)

	var refs []string
	seen := make(map[string]bool)
	var frames []string // function name (or "") of each open parenthesis

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.is("("):
			fn := ""
			if i > 0 && toks[i-1].kind == tokIdent && !toks[i-1].quoted {
				fn = strings.ToLower(toks[i-1].text)
			}
			frames = append(frames, fn)
		case t.is(")"):
			if len(frames) > 0 {
				frames = frames[:len(frames)-1]
			}
		case t.keyword("from") || t.keyword("join"):
			if t.keyword("from") {
				if i > 0 && toks[i-1].keyword("distinct") {
					continue
				}
				if len(frames) > 0 && fromKeywordFunctions[frames[len(frames)-1]] {
					continue
				}
			}
			var found []string
			found, i = collectRefs(toks, i+1)
			i-- // resume the outer loop at the token that ended the list
			for _, ref := range found {
				key := strings.ToLower(ref)
				if ctes[key] || seen[key] {
					continue
				}
				seen[key] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// fromKeywordFunctions use FROM as an argument separator rather than a clause.
var fromKeywordFunctions = map[string]bool{
	"extract":   true,
	"trim":      true,
	"substring": true,
	"overlay":   true,
	"position":  true,
}

// clauseKeywords end a table reference or cannot be aliases.
var clauseKeywords = map[string]bool{
	"where": true, "group": true, "order": true, "limit": true, "offset": true,
	"having": true, "window": true, "qualify": true, "union": true,
	"except": true, "intersect": true, "join": true, "inner": true,
	"left": true, "right": true, "full": true, "cross": true, "outer": true,
	"natural": true, "positional": true, "asof": true, "anti": true, "semi": true,
	"on": true, "using": true, "as": true, "select": true, "from": true,
	"lateral": true, "only": true, "returning": true, "fetch": true,
	"pivot": true, "unpivot": true, "sample": true, "tablesample": true,
	"values": true,
}

// collectRefs reads a table list starting at toks[j] and returns the names
// found plus the index of the first token not consumed.
func collectRefs(toks []token, j int) ([]string, int) {
	var refs []string
	for j < len(toks) && (toks[j].keyword("lateral") || toks[j].keyword("only")) {
		j++
	}
	for j < len(toks) {
		t := toks[j]
		if t.kind != tokIdent || (!t.quoted && clauseKeywords[strings.ToLower(t.text)]) {
			break
		}
		if j+1 < len(toks) && toks[j+1].is("(") {
			break // table function such as read_csv(...)
		}
		refs = append(refs, t.text)
		j++

		// Optional alias.
		if j < len(toks) && toks[j].keyword("as") {
			j++
			if j < len(toks) && toks[j].kind == tokIdent {
				j++
			}
		} else if j < len(toks) && toks[j].kind == tokIdent &&
			(toks[j].quoted || !clauseKeywords[strings.ToLower(toks[j].text)]) {
			j++
		}

		if j < len(toks) && toks[j].is(",") {
			j++
			continue
		}
		break
	}
	return refs, j
}

// cteNames returns the lower-cased names introduced by WITH clauses. A
// name may carry a column list: WITH x(a, b) AS (...).
func cteNames(toks []token) map[string]bool {
	names := make(map[string]bool)
	for i := 1; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokIdent {
			continue
		}
		prev := toks[i-1]
		if !prev.keyword("with") && !prev.keyword("recursive") && !prev.is(",") {
			continue
		}
		j := i + 1
		if j < len(toks) && toks[j].is("(") {
			j = skipParens(toks, j)
		}
		if j+1 >= len(toks) || !toks[j].keyword("as") {
			continue
		}
		next := toks[j+1]
		if next.is("(") || next.keyword("materialized") || next.keyword("not") {
			names[strings.ToLower(t.text)] = true
		}
	}
	return names
}

// skipParens returns the index just past the parenthesis matching the one
// at toks[open], or len(toks) when it is unbalanced.
func skipParens(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].is("("):
			depth++
		case toks[i].is(")"):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(toks)
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokPunct
	tokOther
)

type token struct {
	kind   tokKind
	text   string
	quoted bool
}

func (t token) is(p string) bool { return t.kind == tokPunct && t.text == p }

func (t token) keyword(k string) bool {
	return t.kind == tokIdent && !t.quoted && strings.EqualFold(t.text, k)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c == '$' || (c >= '0' && c <= '9')
}

func tokenize(q string) []token {
	var toks []token
	i := 0
	for i < len(q) {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '-' && i+1 < len(q) && q[i+1] == '-':
			for i < len(q) && q[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(q) && q[i+1] == '*':
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				i = len(q)
			} else {
				i += end + 4
			}
		case c == '\'':
			i++
			for i < len(q) {
				if q[i] == '\'' {
					if i+1 < len(q) && q[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, token{kind: tokOther, text: "'"})
		case isIdentStart(c) || c == '"':
			text, quoted, next := readIdent(q, i)
			toks = append(toks, token{kind: tokIdent, text: text, quoted: quoted})
			i = next
		case c == '(' || c == ')' || c == ',' || c == ';':
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		default:
			j := i + 1
			for j < len(q) && c >= '0' && c <= '9' && isIdentChar(q[j]) {
				j++
			}
			toks = append(toks, token{kind: tokOther, text: q[i:j]})
			i = j
		}
	}
	return toks
}

// readIdent reads a possibly dotted, possibly quoted identifier chain such as
// main."Sales Daily". Quotes are removed from the returned text.
func readIdent(q string, i int) (string, bool, int) {
	var parts []string
	quoted := false
	for i < len(q) {
		if q[i] == '"' {
			quoted = true
			var sb strings.Builder
			j := i + 1
			for j < len(q) {
				if q[j] == '"' {
					if j+1 < len(q) && q[j+1] == '"' {
						sb.WriteByte('"')
						j += 2
						continue
					}
					j++
					break
				}
				sb.WriteByte(q[j])
				j++
			}
			parts = append(parts, sb.String())
			i = j
		} else {
			j := i
			for j < len(q) && isIdentChar(q[j]) {
				j++
			}
			if j == i {
				break
			}
			parts = append(parts, q[i:j])
			i = j
		}
		if i+1 < len(q) && q[i] == '.' && (isIdentStart(q[i+1]) || q[i+1] == '"') {
			i++
			continue
		}
		break
	}
	return strings.Join(parts, "."), quoted, i
}
