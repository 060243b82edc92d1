// Package punctuation rewrites spoken punctuation phrases ("comma",
// "point d'interrogation") into literal punctuation marks.
package punctuation

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultLanguage is used when a tag has no phrase map of its own.
const DefaultLanguage = "en"

// Languages written without spaces between words. Phrases are replaced
// in place, without padding the mark with spaces.
var noSpaceLanguages = map[string]bool{
	"zh": true,
	"ja": true,
	"th": true,
}

const space = `[\s\p{Z}]`

var (
	whitespaceRun   = regexp.MustCompile(space + `+`)
	spaceBeforeMark = regexp.MustCompile(space + `([,.!?;:])`)
)

type rule struct {
	pattern *regexp.Regexp
	repl    string
}

// rules holds the compiled replacement rules per language, longest phrase first.
var rules = compileAll(phraseMaps)

// Normalize replaces spoken punctuation phrases in raw with literal marks,
// using the phrase map of languageTag's primary subtag.
//
// Longer phrases are replaced before shorter ones, so "point
// d'interrogation" wins over "point". The result has single spaces, no
// space before , . ! ? ; : and no leading or trailing whitespace.
func Normalize(raw, languageTag string) string {
	if raw == "" {
		return ""
	}

	text := norm.NFC.String(raw)
	for _, r := range rulesFor(languageTag) {
		text = r.pattern.ReplaceAllLiteralString(text, r.repl)
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	text = spaceBeforeMark.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// PrimarySubtag returns the lower-cased primary subtag of an IETF language
// tag: "fr-FR" and "fr_FR" both yield "fr".
func PrimarySubtag(languageTag string) string {
	tag := strings.TrimSpace(languageTag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// Supported reports whether languageTag has a phrase map of its own,
// as opposed to falling back to DefaultLanguage.
func Supported(languageTag string) bool {
	_, ok := rules[PrimarySubtag(languageTag)]
	return ok
}

// Separator returns the string placed between consecutive transcript
// fragments: nothing for languages written without spaces, one space
// otherwise.
func Separator(languageTag string) string {
	if noSpaceLanguages[PrimarySubtag(languageTag)] {
		return ""
	}
	return " "
}

// Languages returns the primary subtags that have a phrase map, sorted.
func Languages() []string {
	langs := make([]string, 0, len(rules))
	for lang := range rules {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func rulesFor(languageTag string) []rule {
	if r, ok := rules[PrimarySubtag(languageTag)]; ok {
		return r
	}
	return rules[DefaultLanguage]
}

func compileAll(maps map[string]map[string]string) map[string][]rule {
	out := make(map[string][]rule, len(maps))
	for lang, phrases := range maps {
		out[lang] = compile(phrases, noSpaceLanguages[lang])
	}
	return out
}

func compile(phrases map[string]string, noSpace bool) []rule {
	keys := make([]string, 0, len(phrases))
	for phrase := range phrases {
		keys = append(keys, phrase)
	}
	// Ties are ordered lexicographically so the result never depends on
	// map iteration order.
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	out := make([]rule, 0, len(keys))
	for _, phrase := range keys {
		mark := phrases[phrase]
		expr := phrasePattern(norm.NFC.String(phrase))
		repl := mark
		if !noSpace {
			expr = space + `*` + expr + space + `*`
			repl = " " + mark + " "
		}
		out = append(out, rule{
			pattern: regexp.MustCompile(`(?i)` + expr),
			repl:    repl,
		})
	}
	return out
}

// phrasePattern quotes phrase literally, letting any whitespace run separate
// its words and either apostrophe form match.
func phrasePattern(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		w = regexp.QuoteMeta(w)
		words[i] = strings.ReplaceAll(w, "'", `['’]`)
	}
	return strings.Join(words, space+`+`)
}
