// Package parser converts player utterances into Intent structs.
// The rule table handles commands and obvious verbs; anything it cannot
// classify is left as UNKNOWN for the content-backed classifier in llm.go.
package parser

import (
	"strings"
	"unicode"

	"github.com/nathoo/asterfall/types"
)

// commands are matched against the whole line or a line prefix followed by
// a space. Order matters: the first match wins.
var commands = []struct {
	prefix string
	action types.Action
}{
	{"!help", types.ActionHelp},
	{"!start", types.ActionStart},
	{"!look", types.ActionLook},
	{"!investigate", types.ActionInvestigate},
	{"!move", types.ActionMove},
	{"!go", types.ActionMove},
	{"!talk", types.ActionTalk},
	{"!rest short", types.ActionRestShort},
	{"!rest long", types.ActionRestLong},
	{"!stats", types.ActionStats},
	{"!recap", types.ActionRecap},
}

// bareWords are single-word lines treated like their "!" command.
var bareWords = map[string]types.Action{
	"start": types.ActionStart,
	"help":  types.ActionHelp,
	"stats": types.ActionStats,
	"recap": types.ActionRecap,
}

// wordClasses are checked in order; the first class with a whole-word hit
// decides the action.
var wordClasses = []struct {
	action types.Action
	words  map[string]bool
}{
	{types.ActionInvestigate, set("investigate", "inspect", "examine", "search")},
	{types.ActionTalk, set("talk", "speak", "ask", "approach", "greet", "chat")},
	{types.ActionLook, set("look", "observe", "scan")},
	{types.ActionMove, set("move", "go", "walk", "travel", "head")},
}

// targetAliases collapse common nouns to the selector keywords NPC
// resolution understands.
var targetAliases = []struct {
	keys   []string
	target string
}{
	{[]string{"traveler", "travellers"}, "travelers"},
	{[]string{"scholar", "scholars"}, "scholar"},
	{[]string{"merchant"}, "merchant"},
}

var prepositions = map[string]bool{
	"on": true, "at": true, "to": true,
	"with": true, "in": true, "from": true,
	"about": true, "toward": true, "towards": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// MaxTargetLen bounds a free-text talk target.
const MaxTargetLen = 64

// Parse classifies input with the rule table. Rule matches carry
// confidence 1; an unclassified line is UNKNOWN with confidence 0.
func Parse(input string) types.Intent {
	intent := types.Intent{Action: types.ActionUnknown, RawText: input}
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return intent
	}
	words := tokenize(lower)

	for _, c := range commands {
		if lower == c.prefix || strings.HasPrefix(lower, c.prefix+" ") {
			intent.Action = c.action
			intent.Target = strings.TrimSpace(lower[len(c.prefix):])
			break
		}
	}

	if intent.Action == types.ActionUnknown {
		if action, ok := bareWords[lower]; ok {
			intent.Action = action
		}
	}

	if intent.Action == types.ActionUnknown && hasWord(words, "rest") {
		switch {
		case hasWord(words, "long"):
			intent.Action = types.ActionRestLong
		case hasWord(words, "short"):
			intent.Action = types.ActionRestShort
		}
	}

	if intent.Action == types.ActionUnknown {
		for _, class := range wordClasses {
			if anyWord(words, class.words) {
				intent.Action = class.action
				if intent.Action == types.ActionTalk || intent.Action == types.ActionMove {
					intent.Target = wordsAfter(words, class.words)
				}
				break
			}
		}
	}

	switch intent.Action {
	case types.ActionTalk:
		if _, after, ok := strings.Cut(lower, " to "); ok {
			intent.Target = strings.TrimSpace(after)
		} else if _, after, ok := strings.Cut(lower, " with "); ok {
			intent.Target = strings.TrimSpace(after)
		}
		intent.Target = capRunes(intent.Target, MaxTargetLen)
		if alias, ok := aliasFor(lower); ok {
			intent.Target = alias
		}
	case types.ActionInvestigate:
		if alias, ok := aliasFor(lower); ok && alias != "scholar" {
			intent.Target = alias
		} else if strings.Contains(lower, "fire pit") {
			intent.Target = "fire_pit"
		}
	case types.ActionMove:
		switch {
		case strings.Contains(lower, "ruin"):
			intent.Target = "ruin"
		case strings.Contains(lower, "town"), strings.Contains(lower, "square"):
			intent.Target = "town"
		}
	}

	if intent.Action != types.ActionUnknown {
		intent.Confidence = 1
	}
	return intent
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// tokenize splits on anything that is not a letter or digit, so word tests
// behave like regexp word boundaries.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func hasWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func anyWord(words []string, class map[string]bool) bool {
	for _, w := range words {
		if class[w] {
			return true
		}
	}
	return false
}

// wordsAfter returns the words following the first verb from class, with
// articles and a leading preposition removed.
func wordsAfter(words []string, class map[string]bool) string {
	for i, w := range words {
		if !class[w] {
			continue
		}
		rest := stripArticles(words[i+1:])
		if len(rest) > 0 && prepositions[rest[0]] {
			rest = rest[1:]
		}
		return strings.Join(rest, " ")
	}
	return ""
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

func aliasFor(lower string) (string, bool) {
	for _, a := range targetAliases {
		for _, k := range a.keys {
			if strings.Contains(lower, k) {
				return a.target, true
			}
		}
	}
	return "", false
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
