package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"

	"fftransform/config"
)

// Rule names the check that rejected a directive.
type Rule string

const (
	RuleDenyList     Rule = "deny_list"
	RuleFilter       Rule = "filter_allow_list"
	RuleCodec        Rule = "codec_allow_list"
	RuleMissingValue Rule = "missing_value"
	RuleSyntax       Rule = "syntax"
	RuleIndirect     Rule = "indirect_option"
)

// denySubstrings are shell metacharacters that are dangerous in any position.
// Order matters: the first match is the one reported. '@' names a filter
// instance ("movie@x=..."), which hides the filter name from FilterIdentifiers.
var denySubstrings = []string{
	";", "&&", "||", "|", ">", "<", "`", "${", "$(", "$",
	"/etc/", "/dev/", "/proc/", "@",
}

// denyCommands matches destructive, relocating, copying, shell and elevation
// commands as whole words.
var denyCommands = regexp.MustCompile(`\b(rm|mv|cp|dd|chmod|chown|sudo|su|sh|bash)\b`)

// DefaultArgs is the built-in text-overlay transform used when a request
// carries no directive at all. It is trusted and never tokenized.
var DefaultArgs = []string{
	"-vf", "drawtext=text='Hello World':x=10:y=10:fontsize=24:fontcolor=white",
}

// Rejection describes the token and rule that failed validation.
type Rejection struct {
	Index  int
	Token  string
	Rule   Rule
	Detail string
}

func (r *Rejection) Error() string {
	if r.Index < 0 {
		return fmt.Sprintf("%s: %s", r.Rule, r.Detail)
	}
	return fmt.Sprintf("token %d %q: %s: %s", r.Index, r.Token, r.Rule, r.Detail)
}

// Verdict is the outcome of validating a token sequence. Exactly one of Args
// (accepted) or Rejection (rejected) is meaningful.
type Verdict struct {
	Args      []string
	Rejection *Rejection
}

// Accepted reports whether the directive passed every check.
func (v Verdict) Accepted() bool { return v.Rejection == nil }

// Err returns the rejection as an InvalidDirective error, or nil.
func (v Verdict) Err() error {
	if v.Rejection == nil {
		return nil
	}
	return &Error{Kind: KindInvalidDirective, Detail: v.Rejection.Error(), Err: v.Rejection}
}

type argRole int

const (
	roleNone argRole = iota
	roleFilterGraph
	roleCodec
)

// Sanitizer decides whether a directive may be forwarded to ffmpeg as argv.
type Sanitizer struct {
	registry *Registry
	tokenize TokenizeFunc
}

// NewSanitizer returns a sanitizer backed by reg. quoting selects the
// tokenizer, see config.QuotingSimple and config.QuotingShell.
func NewSanitizer(reg *Registry, quoting string) *Sanitizer {
	s := &Sanitizer{registry: reg, tokenize: simpleTokenize}
	if quoting == config.QuotingShell {
		s.tokenize = SplitCommand
	}
	return s
}

// Args resolves the argument list for a request. A nil directive selects
// DefaultArgs; anything else is tokenized and validated.
func (s *Sanitizer) Args(directive *string) ([]string, error) {
	if directive == nil {
		return append([]string(nil), DefaultArgs...), nil
	}
	v := s.SanitizeDirective(*directive)
	if err := v.Err(); err != nil {
		return nil, err
	}
	return v.Args, nil
}

// SanitizeDirective tokenizes raw and validates the resulting tokens.
func (s *Sanitizer) SanitizeDirective(raw string) Verdict {
	tokens, err := s.tokenize(raw)
	if err != nil {
		return reject(&Rejection{Index: -1, Rule: RuleSyntax, Detail: err.Error()})
	}
	return s.Validate(tokens)
}

// Validate checks every token, in order, against the deny-list and, for the
// values of filter-graph and codec options, against the allow-lists. Other
// options pass through untouched. The first failing token rejects the whole
// sequence; an empty sequence is accepted.
func (s *Sanitizer) Validate(tokens []string) Verdict {
	pending, flagIdx := roleNone, -1

	for i, tok := range tokens {
		if pattern, ok := denyMatch(tok); ok {
			return reject(&Rejection{Index: i, Token: tok, Rule: RuleDenyList,
				Detail: fmt.Sprintf("contains disallowed pattern %q", pattern)})
		}

		switch pending {
		case roleFilterGraph:
			for _, name := range FilterIdentifiers(tok) {
				if !s.registry.SafeFilter(name) {
					return reject(&Rejection{Index: i, Token: tok, Rule: RuleFilter,
						Detail: fmt.Sprintf("filter %q is not allowed", name)})
				}
			}
			pending = roleNone
			continue
		case roleCodec:
			if !s.registry.SafeCodec(tok) {
				return reject(&Rejection{Index: i, Token: tok, Rule: RuleCodec,
					Detail: fmt.Sprintf("codec %q is not allowed", tok)})
			}
			pending = roleNone
			continue
		}

		if indirectOption(tok) {
			return reject(&Rejection{Index: i, Token: tok, Rule: RuleIndirect,
				Detail: "options read from files are not allowed"})
		}
		pending, flagIdx = roleOf(tok), i
	}

	if pending != roleNone {
		return reject(&Rejection{Index: flagIdx, Token: tokens[flagIdx], Rule: RuleMissingValue,
			Detail: "option has no value"})
	}

	verdictTotal.WithLabelValues("accepted").Inc()
	return Verdict{Args: append([]string{}, tokens...)}
}

func reject(r *Rejection) Verdict {
	verdictTotal.WithLabelValues(string(r.Rule)).Inc()
	return Verdict{Rejection: r}
}

func denyMatch(tok string) (string, bool) {
	for _, p := range denySubstrings {
		if strings.Contains(tok, p) {
			return p, true
		}
	}
	if m := denyCommands.FindString(tok); m != "" {
		return m, true
	}
	return "", false
}

func roleOf(tok string) argRole {
	switch tok {
	case "-vf", "-af", "-filter", "-filter_complex", "-lavfi":
		return roleFilterGraph
	case "-c", "-codec", "-vcodec", "-acodec", "-scodec":
		return roleCodec
	}
	switch {
	case strings.HasPrefix(tok, "-filter:"):
		return roleFilterGraph
	case strings.HasPrefix(tok, "-c:"), strings.HasPrefix(tok, "-codec:"):
		return roleCodec
	}
	return roleNone
}

// indirectOption reports whether tok makes ffmpeg load an option value from a
// file: the "-/opt" form and the filter script options.
func indirectOption(tok string) bool {
	if strings.HasPrefix(tok, "-/") {
		return true
	}
	for _, flag := range []string{"-filter_script", "-filter_complex_script"} {
		if tok == flag || strings.HasPrefix(tok, flag+":") {
			return true
		}
	}
	return false
}

// FilterIdentifiers returns every maximal run of ASCII letters in a
// filter-graph value that is immediately followed by '=', ':', ',',
// whitespace or the end of the value.
func FilterIdentifiers(graph string) []string {
	var ids []string
	start := -1
	for i := 0; i <= len(graph); i++ {
		if i < len(graph) && isLetter(graph[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && (i == len(graph) || isBoundary(graph[i])) {
			ids = append(ids, graph[start:i])
		}
		start = -1
	}
	return ids
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isBoundary(c byte) bool {
	switch c {
	case '=', ':', ',', ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
