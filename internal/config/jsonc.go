package config

import (
	"fmt"
	"strings"
)

// normalizeJSONC blanks comments and drops trailing commas while keeping
// every newline in place, so decoder offsets still map to source lines.
func normalizeJSONC(content string) (string, error) {
	s := jsoncScanner{src: content}
	s.out.Grow(len(content))
	if err := s.run(); err != nil {
		return "", err
	}
	return s.out.String(), nil
}

type jsoncScanner struct {
	src string
	pos int
	out strings.Builder
}

func (s *jsoncScanner) run() error {
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == '"':
			s.copyString()
		case ch == '/' && s.peek(1) == '/':
			s.blankLineComment()
		case ch == '/' && s.peek(1) == '*':
			if err := s.blankBlockComment(); err != nil {
				return err
			}
		case ch == ',' && s.closesAfterComma():
			s.out.WriteByte(' ')
			s.pos++
		default:
			s.out.WriteByte(ch)
			s.pos++
		}
	}
	return nil
}

func (s *jsoncScanner) peek(n int) byte {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

func (s *jsoncScanner) copyString() {
	s.out.WriteByte(s.src[s.pos])
	s.pos++
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		s.out.WriteByte(ch)
		s.pos++
		switch ch {
		case '\\':
			if s.pos < len(s.src) {
				s.out.WriteByte(s.src[s.pos])
				s.pos++
			}
		case '"':
			return
		}
	}
}

func (s *jsoncScanner) blankLineComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' && s.src[s.pos] != '\r' {
		s.out.WriteByte(' ')
		s.pos++
	}
}

func (s *jsoncScanner) blankBlockComment() error {
	end := strings.Index(s.src[s.pos+2:], "*/")
	if end < 0 {
		return fmt.Errorf("unterminated block comment in JSONC")
	}
	stop := s.pos + 2 + end + 2
	for ; s.pos < stop; s.pos++ {
		switch ch := s.src[s.pos]; ch {
		case '\n', '\r', '\t':
			s.out.WriteByte(ch)
		default:
			s.out.WriteByte(' ')
		}
	}
	return nil
}

// closesAfterComma reports whether only whitespace or comments separate the
// comma at pos from a closing bracket.
func (s *jsoncScanner) closesAfterComma() bool {
	for i := s.pos + 1; i < len(s.src); i++ {
		switch ch := s.src[i]; {
		case ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t':
		case ch == '/' && i+1 < len(s.src) && s.src[i+1] == '/':
			for i < len(s.src) && s.src[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(s.src) && s.src[i+1] == '*':
			end := strings.Index(s.src[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += 2 + end + 1
		default:
			return ch == '}' || ch == ']'
		}
	}
	return false
}
