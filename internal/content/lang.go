package content

import (
	"strings"

	"golang.org/x/text/language"
)

// Lang is one of the two supported site languages.
type Lang struct {
	tag language.Tag
}

var (
	Korean  = Lang{tag: language.Korean}
	English = Lang{tag: language.English}
)

// DefaultLang is used when nothing in the request selects a language.
var DefaultLang = Korean

var supported = []language.Tag{language.Korean, language.English}

var matcher = language.NewMatcher(supported)

// Langs returns the supported languages, default first.
func Langs() []Lang {
	return []Lang{Korean, English}
}

// Tag returns the BCP 47 tag.
func (l Lang) Tag() language.Tag {
	if l.tag == language.Und {
		return DefaultLang.tag
	}
	return l.tag
}

// Code returns the short toggle code, KR or EN.
func (l Lang) Code() string {
	if l.Tag() == language.English {
		return "EN"
	}
	return "KR"
}

func (l Lang) String() string {
	return l.Code()
}

// Other returns the language the toggle switches to.
func (l Lang) Other() Lang {
	if l.Tag() == language.English {
		return Korean
	}
	return English
}

// ParseLang accepts the toggle codes KR and EN (any case) or a BCP 47 tag
// whose base language is Korean or English.
func ParseLang(s string) (Lang, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "":
		return Lang{}, false
	case "KR", "KO":
		return Korean, true
	case "EN":
		return English, true
	}

	tag, err := language.Parse(s)
	if err != nil {
		return Lang{}, false
	}
	base, _ := tag.Base()
	for _, l := range Langs() {
		if b, _ := l.tag.Base(); b == base {
			return l, true
		}
	}
	return Lang{}, false
}

// MatchLang picks the best supported language for an Accept-Language header.
func MatchLang(acceptLanguage string) Lang {
	return MatchLangOr(acceptLanguage, DefaultLang)
}

// MatchLangOr is MatchLang with fallback used when the header is empty or
// names no supported language.
func MatchLangOr(acceptLanguage string, fallback Lang) Lang {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return Lang{tag: supported[idx]}
}
