// Package language defines the supported translation languages and the
// detection fallback policy.
package language

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Code is an upper-case ISO 639-1 language code as shown to users and used in
// quick-reply payloads.
type Code string

// Supported language codes.
const (
	EN Code = "EN"
	FR Code = "FR"
	ES Code = "ES"
	DE Code = "DE"
	MG Code = "MG"
)

// Supported lists the languages offered in the translation menu, in menu order.
var Supported = []Code{EN, FR, ES, DE, MG}

// menuNamer renders language names in French, the bot's interface language.
var menuNamer = display.Languages(language.French)

// Parse returns the supported code matching s, case-insensitively.
func Parse(s string) (Code, bool) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsSupported() {
		return "", false
	}
	return c, true
}

// IsSupported reports whether c is one of Supported.
func (c Code) IsSupported() bool {
	return slices.Contains(Supported, c)
}

// ISO6391 returns the lower-case code used by translation and speech APIs.
func (c Code) ISO6391() string {
	return strings.ToLower(string(c))
}

// Tag returns the BCP 47 tag for c.
func (c Code) Tag() language.Tag {
	return language.Make(c.ISO6391())
}

// Name returns the capitalized French name of the language ("Anglais"),
// falling back to the code.
func (c Code) Name() string {
	name := menuNamer.Name(c.Tag())
	if name == "" {
		return string(c)
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Others returns the supported languages except c, in menu order.
func Others(c Code) []Code {
	out := make([]Code, 0, len(Supported))
	for _, s := range Supported {
		if s != c {
			out = append(out, s)
		}
	}
	return out
}
