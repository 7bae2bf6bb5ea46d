package detect

import (
	"strings"
	"unicode/utf8"
)

// SignatureParser is the scratch header state kept for the final
// validator, which re-parses the literal src/dst strings for IP-only
// canonicalisation.
type SignatureParser struct {
	Action    string
	Protocol  string
	Src       string
	SP        string
	Direction string
	Dst       string
	DP        string
	Opts      string
}

// nextToken consumes the next whitespace-separated token.
func nextToken(input string) (token, rest string) {
	input = strings.TrimLeft(input, " \t\n\r")
	if input == "" {
		return "", ""
	}
	if i := strings.IndexAny(input, " \t\n\r"); i >= 0 {
		return input[:i], input[i+1:]
	}
	return input, ""
}

// nextListToken consumes the next token, treating space inside brackets
// as part of the token. Bracket depth nests.
func nextListToken(input string) (token, rest string) {
	input = strings.TrimLeft(input, " \t\n\r")
	if input == "" {
		return "", ""
	}
	depth := 0
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ' ':
			if depth == 0 {
				return input[:i], input[i+1:]
			}
		}
	}
	return input, ""
}

// splitRule cuts a rule string into the seven header tokens and the
// option body between the first '(' and the trailing ')'.
func splitRule(rule string, parser *SignatureParser) error {
	rest := rule
	parser.Action, rest = nextToken(rest)
	parser.Protocol, rest = nextListToken(rest)
	parser.Src, rest = nextListToken(rest)
	parser.SP, rest = nextListToken(rest)
	parser.Direction, rest = nextToken(rest)
	parser.Dst, rest = nextListToken(rest)
	parser.DP, rest = nextListToken(rest)

	if parser.Action == "" || parser.Protocol == "" || parser.Src == "" ||
		parser.SP == "" || parser.Direction == "" || parser.Dst == "" ||
		parser.DP == "" {
		return parseErrorf("incomplete rule header")
	}

	if rest == "" {
		return parseErrorf("no rule options")
	}
	rest = strings.TrimLeft(rest, " \t\n\r")
	if !strings.HasPrefix(rest, "(") {
		return parseErrorf("no rule options")
	}
	rest = strings.TrimLeft(rest[1:], " \t\n\r")
	trimmed := strings.TrimRight(rest, " \t\n\r")
	if !strings.HasSuffix(trimmed, ")") {
		return parseErrorf("rule options not closed with ')'")
	}
	parser.Opts = strings.TrimRight(trimmed[:len(trimmed)-1], " \t\n\r")
	return nil
}

// checkRuleText rejects rules that are not valid UTF-8 or contain
// control characters other than TAB, CR and LF.
func checkRuleText(rule string) error {
	if !utf8.ValidString(rule) {
		return parseErrorf("rule is not valid UTF-8")
	}
	for i := 0; i < len(rule); i++ {
		c := rule[i]
		if c < 0x20 {
			if c == 0x09 || c == 0x0a || c == 0x0d {
				continue
			}
			return parseErrorf("rule contains invalid (control) characters")
		}
		if c == 0x7f {
			return parseErrorf("rule contains invalid (control) characters")
		}
	}
	return nil
}
