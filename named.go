// named.go
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder selects how a provider binds parameters.
//
//   - PlaceholderNamed      → text keeps <token>name, args are sql.Named (SQL Server, Oracle)
//   - PlaceholderQuestion   → "?"           (MySQL, SQLite)
//   - PlaceholderDollar     → "$1, $2, …"  (PostgreSQL)
//   - PlaceholderAtP        → "@p1, @p2…"  (SQL Server, positional)
//   - PlaceholderColonNum   → ":1, :2, …"  (Oracle, positional)
//
// The built-in providers use the first three. PlaceholderAtP and
// PlaceholderColonNum serve custom providers passed with WithProvider.
type Placeholder int

const (
	PlaceholderNamed Placeholder = iota
	PlaceholderQuestion
	PlaceholderDollar
	PlaceholderAtP
	PlaceholderColonNum
)

// Rebind resolves <token>name references in query against params (anything
// BagOf accepts) and rewrites them into p's native binding style. NULL
// entries bind SQL NULL.
//
// Example:
//
//	q, args, err := dbconn.Rebind(
//	    `SELECT id FROM users WHERE status = @status AND tenant = @tenant`,
//	    dbconn.MustProvider("postgres"),
//	    struct{ Status string; Tenant int }{"active", 7},
//	)
//	// q    => SELECT id FROM users WHERE status = $1 AND tenant = $2
//	// args => ["active", 7]
//
// SQL scanning skips quoted strings, comments, PostgreSQL $tag$…$tag$ blocks,
// "::" casts and "@@" system variables.
func Rebind(query string, p Provider, params any) (string, []any, error) {
	b, err := BagOf(params)
	if err != nil {
		return "", nil, err
	}
	return bindText(query, p, ValueParams(b))
}

// NamedExec is a convenience for Exec with named parameters on any Execer
// (*sql.DB, *sql.Tx, *sql.Conn) outside a Session.
//
// Example:
//
//	_, err := dbconn.NamedExec(ctx, db, dbconn.MustProvider("sqlserver"),
//	    `UPDATE items SET price = @p WHERE id = @id`,
//	    map[string]any{"p": 100, "id": 7},
//	)
func NamedExec(ctx context.Context, e Execer, p Provider, query string, params any) (sql.Result, error) {
	bound, args, err := Rebind(query, p, params)
	if err != nil {
		return nil, err
	}
	res, err := e.ExecContext(ctx, bound, args...)
	return res, execErr("exec", bound, err)
}

// NamedQuery runs a query with named parameters outside a Session and
// projects every row onto T (see Project).
func NamedQuery[T any](ctx context.Context, q Querier, p Provider, query string, params any) ([]T, error) {
	bound, args, err := Rebind(query, p, params)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, execErr("query", bound, err)
	}
	return Project[T](newRows(rows, nil, nil)).Collect()
}

type nameToken struct {
	name  string
	start int
	end   int
}

// bindText turns the <token>name references of query into p's binding style
// and returns the args in the order the provider expects. Every reference
// must have a bound value; unreferenced args are dropped.
func bindText(query string, p Provider, args []sql.NamedArg) (string, []any, error) {
	toks, err := findNamedParams(query, p.token())
	if err != nil {
		return "", nil, err
	}
	if len(toks) == 0 {
		return query, nil, nil
	}

	lut := make(map[string]sql.NamedArg, len(args))
	for _, a := range args {
		lut[a.Name] = a
	}

	if p.Placeholder == PlaceholderNamed {
		out := make([]any, 0, len(toks))
		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			a, ok := lut[t.name]
			if !ok {
				return "", nil, fmt.Errorf("dbconn: bind: missing value for %c%s", p.token(), t.name)
			}
			if _, dup := seen[t.name]; dup {
				continue
			}
			seen[t.name] = struct{}{}
			out = append(out, a)
		}
		return query, out, nil
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	out := make([]any, 0, len(toks))
	last := 0
	for i, t := range toks {
		a, ok := lut[t.name]
		if !ok {
			return "", nil, fmt.Errorf("dbconn: bind: missing value for %c%s", p.token(), t.name)
		}
		b.WriteString(query[last:t.start])
		b.WriteString(positional(p.Placeholder, i+1))
		out = append(out, a.Value)
		last = t.end
	}
	b.WriteString(query[last:])
	return b.String(), out, nil
}

func positional(ph Placeholder, n int) string {
	switch ph {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(n)
	case PlaceholderAtP:
		return "@p" + strconv.Itoa(n)
	case PlaceholderColonNum:
		return ":" + strconv.Itoa(n)
	default:
		return "?"
	}
}

func findNamedParams(query string, token byte) ([]nameToken, error) {
	var out []nameToken
	i := 0
	for i < len(query) {
		r, w := utf8.DecodeRuneInString(query[i:])
		switch r {
		case '\'', '"', '`':
			j, err := skipQuoted(query, i+w, query[i])
			if err != nil {
				return nil, err
			}
			i = j
			continue
		case '[':
			i = skipBracketQuoted(query, i+w)
			continue
		case '-':
			if strings.HasPrefix(query[i:], "--") {
				i = skipLineComment(query, i+2)
				continue
			}
		case '/':
			if strings.HasPrefix(query[i:], "/*") {
				j, err := skipBlockComment(query, i+2)
				if err != nil {
					return nil, err
				}
				i = j
				continue
			}
		case '$':
			if j, ok, err := skipDollarQuoted(query, i); err != nil {
				return nil, err
			} else if ok {
				i = j
				continue
			}
		}
		if r == rune(token) {
			if i+1 < len(query) && query[i+1] == token {
				i += 2 // "::" cast, "@@" system variable
				continue
			}
			start := i
			name, end := parseIdent(query, i+1)
			if name != "" {
				out = append(out, nameToken{name: name, start: start, end: end})
				i = end
				continue
			}
		}
		i += w
	}
	return out, nil
}

var quoteKinds = map[byte]string{
	'\'': "single-quoted string",
	'"':  "double-quoted identifier",
	'`':  "backtick-quoted identifier",
}

// skipQuoted returns the offset just past the closing q, starting inside the
// literal at i. A doubled q is an escaped quote.
func skipQuoted(s string, i int, q byte) (int, error) {
	for i < len(s) {
		c := s[i]
		i++
		if c != q {
			continue
		}
		if i < len(s) && s[i] == q {
			i++
			continue
		}
		return i, nil
	}
	return 0, fmt.Errorf("dbconn: unterminated %s", quoteKinds[q])
}

// skipBracketQuoted skips a SQL Server [identifier]. An unterminated bracket
// is left for the server to reject.
func skipBracketQuoted(s string, i int) int {
	if j := strings.IndexByte(s[i:], ']'); j >= 0 {
		return i + j + 1
	}
	return i
}

func skipLineComment(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(s)
}

func skipBlockComment(s string, i int) (int, error) {
	j := strings.Index(s[i:], "*/")
	if j < 0 {
		return 0, fmt.Errorf("dbconn: unterminated block comment")
	}
	return i + j + 2, nil
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL).
func skipDollarQuoted(s string, i int) (int, bool, error) {
	if s[i] != '$' {
		return 0, false, nil
	}
	j := i + 1
	for j < len(s) && s[j] != '$' && isTagChar(rune(s[j])) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false, nil
	}
	tag := s[i : j+1]
	k := j + 1
	idx := strings.Index(s[k:], tag)
	if idx < 0 {
		return 0, true, fmt.Errorf("dbconn: unterminated dollar-quoted string")
	}
	return k + idx + len(tag), true, nil
}

func isTagChar(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if !isTagChar(r) {
			break
		}
		i += w
	}
	if i == start {
		return "", i
	}
	return s[start:i], i
}
