package ffmpeg

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/shlex"
)

// TokenizeFunc splits a raw directive into process arguments.
type TokenizeFunc func(raw string) ([]string, error)

// Tokenize splits a directive on whitespace outside of quotes. Either quote
// character toggles quoted mode and is dropped from the output; there is no
// escaping and no nesting. An unterminated quote runs to the end of the input.
// Tokenize never invokes a shell and never fails.
func Tokenize(raw string) []string {
	var (
		tokens   []string
		current  strings.Builder
		inQuotes bool
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"' || r == '\'':
			inQuotes = !inQuotes
		case unicode.IsSpace(r) && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// SplitCommand splits a directive with POSIX shell rules (escapes, nested
// quote styles) without running a shell. Unlike Tokenize it rejects
// unterminated quotes.
func SplitCommand(raw string) ([]string, error) {
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid directive syntax: %w", err)
	}
	return args, nil
}

func simpleTokenize(raw string) ([]string, error) {
	return Tokenize(raw), nil
}
