package parse

import (
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/cockroachdb/errors"

	"vela/internal/app/types"
)

// A lexical analyzer for SQL statements. It tokenizes the input
// into identifiers, keywords, delimiters and constants; the parser
// checks the current token with the Match methods and consumes it
// with the Eat methods.
type Lexer struct {
	keywords map[string]bool
	current  rune
	scanErr  string
	scanner  scanner.Scanner
}

// NewLexer creates a lexical analyzer for SQL statement s.
func NewLexer(s string) *Lexer {
	l := &Lexer{keywords: keywords}

	l.scanner.Init(strings.NewReader(s))
	l.scanner.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings
	// Allow underscores anywhere in identifiers, so the schema
	// table names lex as single tokens.
	l.scanner.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || unicode.IsLetter(ch) || (i > 0 && unicode.IsDigit(ch))
	}
	l.scanner.Error = func(_ *scanner.Scanner, msg string) {
		if l.scanErr == "" {
			l.scanErr = msg
		}
	}

	l.nextToken()
	return l
}

var keywords = map[string]bool{
	"select":  true,
	"from":    true,
	"where":   true,
	"and":     true,
	"insert":  true,
	"into":    true,
	"values":  true,
	"delete":  true,
	"create":  true,
	"drop":    true,
	"table":   true,
	"index":   true,
	"show":    true,
	"tables":  true,
	"columns": true,
	"if":      true,
	"not":     true,
	"exists":  true,
	"primary": true,
	"key":     true,
	"on":      true,
	"using":   true,
	"int":     true,
	"text":    true,
	"boolean": true,
	"true":    true,
	"false":   true,
}

// Returns true if the current token is the specified delimiter.
func (l *Lexer) MatchDelim(d rune) bool {
	return l.current == d
}

// Returns true if the current token is an integer constant.
func (l *Lexer) MatchIntConstant() bool {
	return l.current == scanner.Int
}

// Returns true if the current token is a string constant.
func (l *Lexer) MatchStringConstant() bool {
	return l.current == scanner.String
}

// Returns true if the current token is the specified keyword.
func (l *Lexer) MatchKeyword(w string) bool {
	return l.current == scanner.Ident && strings.EqualFold(l.scanner.TokenText(), w)
}

// Returns true if the current token is a legal identifier.
func (l *Lexer) MatchId() bool {
	return l.current == scanner.Ident && !l.keywords[strings.ToLower(l.scanner.TokenText())]
}

// Returns true when the whole statement has been consumed.
func (l *Lexer) MatchEOF() bool {
	return l.current == scanner.EOF
}

// Consumes the current token if it is the specified delimiter.
func (l *Lexer) EatDelim(d rune) error {
	if !l.MatchDelim(d) {
		return l.syntaxErrorf("expected %q", string(d))
	}
	l.nextToken()
	return nil
}

// Consumes the current token if it is an integer constant and
// returns its value. A leading minus sign is part of the constant.
func (l *Lexer) EatIntConstant() (int32, error) {
	negative := false
	if l.MatchDelim('-') {
		negative = true
		l.nextToken()
	}
	if !l.MatchIntConstant() {
		return 0, l.syntaxErrorf("expected integer constant")
	}
	n, err := strconv.ParseInt(l.scanner.TokenText(), 10, 32)
	if err != nil {
		return 0, l.syntaxErrorf("integer constant out of range")
	}
	l.nextToken()
	if negative {
		n = -n
	}
	return int32(n), nil
}

// Consumes the current token if it is a string constant and returns
// its value without the surrounding quotes.
func (l *Lexer) EatStringConstant() (string, error) {
	if !l.MatchStringConstant() {
		return "", l.syntaxErrorf("expected string constant")
	}
	text := l.scanner.TokenText()
	s, err := strconv.Unquote(text)
	if err != nil {
		return "", l.syntaxErrorf("malformed string constant %s", text)
	}
	l.nextToken()
	return s, nil
}

// Consumes the current token if it is the specified keyword.
func (l *Lexer) EatKeyword(w string) error {
	if !l.MatchKeyword(w) {
		return l.syntaxErrorf("expected keyword %s", strings.ToUpper(w))
	}
	l.nextToken()
	return nil
}

// Consumes the current token if it is an identifier and returns it.
func (l *Lexer) EatId() (string, error) {
	if !l.MatchId() {
		return "", l.syntaxErrorf("expected identifier")
	}
	id := l.scanner.TokenText()
	l.nextToken()
	return id, nil
}

func (l *Lexer) nextToken() {
	l.current = l.scanner.Scan()
}

func (l *Lexer) syntaxErrorf(format string, args ...interface{}) error {
	got := l.scanner.TokenText()
	if l.current == scanner.EOF {
		got = "end of statement"
	}
	if l.scanErr != "" {
		got = l.scanErr
	}
	return errors.Wrapf(types.ErrInvalidArgument,
		"syntax error: "+format+", got %s", append(args, got)...)
}
