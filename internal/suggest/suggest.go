// Package suggest implements the stateless autocomplete heuristic: given a
// cursor position and surrounding code, it maps the identifier fragment near
// the cursor to a completion snippet. It has no shared state and no failure
// mode beyond "no match".
package suggest

import (
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// tokenNearCursor returns the identifier fragment that is:
//  1. the token containing the character at cursor-1, or
//  2. the nearest identifier immediately to the left of the cursor, or
//  3. the last identifier on the line.
func tokenNearCursor(code string, cursor int) string {
	cursor = clamp(cursor, 0, len(code))
	lineStart := strings.LastIndex(code[:cursor], "\n") + 1
	lineEnd := strings.Index(code[cursor:], "\n")
	if lineEnd == -1 {
		lineEnd = len(code)
	} else {
		lineEnd += cursor
	}
	lineText := code[lineStart:lineEnd]

	matches := identifierRe.FindAllStringIndex(lineText, -1)
	if len(matches) == 0 {
		return ""
	}

	posInLine := cursor - lineStart

	for _, m := range matches {
		if m[0] <= posInLine-1 && posInLine-1 < m[1] {
			return lineText[m[0]:m[1]]
		}
	}

	var left []int
	for _, m := range matches {
		if m[1] <= posInLine {
			left = m
		}
	}
	if left != nil {
		return lineText[left[0]:left[1]]
	}

	last := matches[len(matches)-1]
	return lineText[last[0]:last[1]]
}

func prefixMatch(fragment, candidate string) bool {
	if fragment == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(candidate), strings.ToLower(fragment))
}

type template struct {
	key  string
	text string
}

// Suggest returns a completion for the fragment near cursor, or "" when
// there is no match. Only Python is supported; snippets reuse the current
// line's leading indentation for their continuation lines.
func Suggest(code string, cursor int, language string) string {
	lang := strings.ToLower(language)
	if lang == "" {
		lang = "python"
	}
	if lang != "python" {
		return ""
	}

	cursor = clamp(cursor, 0, len(code))
	token := tokenNearCursor(code, cursor)
	frag := strings.ToLower(token)

	lineStart := strings.LastIndex(code[:cursor], "\n") + 1
	currentLine := code[lineStart:cursor]
	ind := leadingSpaces(currentLine)

	defSnippet := "def function_name(params):\n" + ind + "    pass"
	forSnippet := "for i in range(10):\n" + ind + "    pass"
	whileSnippet := "while True:\n" + ind + "    pass"
	ifSnippet := "if condition:\n" + ind + "    pass"
	elifSnippet := "elif condition:\n" + ind + "    pass"
	elseSnippet := "else:\n" + ind + "    pass"
	classSnippet := "class MyClass:\n" + ind + "    def __init__(self):\n" + ind + "        pass"
	trySnippet := "try:\n" + ind + "    pass\n" + ind + "except Exception as e:\n" + ind + "    print(e)"

	// 1) Exact keyword matches take priority.
	suggestion := ""
	switch {
	case frag == "import" || frag == "imp" || frag == "im":
		suggestion = "import os"
	case frag == "def":
		suggestion = defSnippet
	case frag == "return" || frag == "ret":
		suggestion = "return "
	case frag == "for":
		suggestion = forSnippet
	case frag == "while":
		suggestion = whileSnippet
	case frag == "if":
		suggestion = ifSnippet
	case frag == "elif":
		suggestion = elifSnippet
	case frag == "else":
		suggestion = elseSnippet
	case frag == "class":
		suggestion = classSnippet
	case frag == "try":
		suggestion = trySnippet
	case strings.HasPrefix(frag, "print") || strings.HasPrefix(frag, "pri"):
		suggestion = "print('Hello World')"
	case strings.HasPrefix(frag, "list") || frag == "ls":
		suggestion = "[]"
	case strings.HasPrefix(frag, "dict") || frag == "di":
		suggestion = "{}"
	case strings.HasPrefix(frag, "set"):
		suggestion = "set()"
	}

	// 2) For very short fragments prefer common keywords, in this order.
	if suggestion == "" && frag != "" {
		shortPriority := []template{
			{"if", ifSnippet},
			{"elif", elifSnippet},
			{"else", elseSnippet},
			{"for", forSnippet},
			{"while", whileSnippet},
			{"def", defSnippet},
			{"class", classSnippet},
			{"try", trySnippet},
			{"return", "return "},
			{"continue", "continue"},
		}
		for _, t := range shortPriority {
			if prefixMatch(frag, t.key) {
				suggestion = t.text
				break
			}
		}
	}

	// 3) Prefix fallback over a short ordered candidate set.
	if suggestion == "" && frag != "" {
		prefixCandidates := []template{
			{"import", "import os"},
			{"print", "print('Hello World')"},
			{"list", "[]"},
			{"dict", "{}"},
			{"set", "set()"},
		}
		for _, t := range prefixCandidates {
			if prefixMatch(frag, t.key) {
				suggestion = t.text
				break
			}
		}
	}

	// 4) Anything identifier-shaped suggests a derived variable name.
	if suggestion == "" && token != "" && identifierRe.FindString(token) == token {
		suggestion = token + "_value"
	}

	if suggestion == "" {
		suggestion = "pass"
	}
	return suggestion
}

func leadingSpaces(line string) string {
	n := 0
	for _, ch := range line {
		if ch != ' ' {
			break
		}
		n++
	}
	return strings.Repeat(" ", n)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
