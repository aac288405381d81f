package config

import (
	"fmt"
	"strings"
	"unicode"
)

// splitCommand tokenizes a command line into argv using shell-style words,
// quotes and backslash escapes. Nothing is expanded, so {monitor} reaches the
// frame grabber untouched. Errors carry the 1-based column of the open quote.
func splitCommand(line string) ([]string, error) {
	var lx commandLexer
	column := 0
	for _, r := range line {
		column++
		lx.feed(r, column)
	}

	switch {
	case lx.escape:
		return nil, fmt.Errorf("dangling backslash at end of %q", line)
	case lx.quote != 0:
		return nil, fmt.Errorf("unterminated %c quote opened at column %d", lx.quote, lx.quoteAt)
	}
	lx.flush()
	return lx.argv, nil
}

type commandLexer struct {
	argv    []string
	word    strings.Builder
	inWord  bool
	quote   rune
	quoteAt int
	escape  bool
}

func (lx *commandLexer) feed(r rune, column int) {
	switch {
	case lx.escape:
		lx.word.WriteRune(r)
		lx.escape = false
	case lx.quote != 0:
		switch {
		case r == lx.quote:
			lx.quote = 0
		case r == '\\' && lx.quote == '"':
			lx.escape = true
		default:
			lx.word.WriteRune(r)
		}
	case r == '\\':
		lx.escape = true
		lx.inWord = true
	case r == '\'' || r == '"':
		lx.quote = r
		lx.quoteAt = column
		lx.inWord = true
	case unicode.IsSpace(r):
		lx.flush()
	default:
		lx.word.WriteRune(r)
		lx.inWord = true
	}
}

// flush ends the current word. Quoted empty strings survive as "" arguments.
func (lx *commandLexer) flush() {
	if !lx.inWord {
		return
	}
	lx.argv = append(lx.argv, lx.word.String())
	lx.word.Reset()
	lx.inWord = false
}
