package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestParseLang(t *testing.T) {
	tests := []struct {
		in   string
		want Lang
		ok   bool
	}{
		{"KR", Korean, true},
		{"kr", Korean, true},
		{"ko", Korean, true},
		{"EN", English, true},
		{"en-US", English, true},
		{"ko-KR", Korean, true},
		{"fr", Lang{}, false},
		{"", Lang{}, false},
		{"!!", Lang{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLang(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want.Code(), got.Code())
			}
		})
	}
}

func TestMatchLang(t *testing.T) {
	assert.Equal(t, "EN", MatchLang("en-US,en;q=0.9").Code())
	assert.Equal(t, "KR", MatchLang("ko-KR,ko;q=0.9,en;q=0.8").Code())
	assert.Equal(t, "EN", MatchLang("fr-FR,en;q=0.5").Code())
	assert.Equal(t, "KR", MatchLang("fr-FR").Code())
	assert.Equal(t, "KR", MatchLang("").Code())
	assert.Equal(t, "KR", MatchLang("not a header;;").Code())

	assert.Equal(t, "EN", MatchLangOr("", English).Code())
	assert.Equal(t, "EN", MatchLangOr("fr-FR", English).Code())
	assert.Equal(t, "KR", MatchLangOr("ko", English).Code())
}

func TestLang_ZeroValueIsDefault(t *testing.T) {
	var l Lang
	assert.Equal(t, language.Korean, l.Tag())
	assert.Equal(t, "KR", l.String())
	assert.Equal(t, "EN", l.Other().Code())
	assert.Equal(t, "KR", English.Other().Code())
}

func TestText_In(t *testing.T) {
	txt := Text{KR: "홈", EN: "Home"}
	assert.Equal(t, "홈", txt.In(Korean))
	assert.Equal(t, "Home", txt.In(English))

	krOnly := Text{KR: "공지"}
	assert.Equal(t, "공지", krOnly.In(English))

	list := TextList{KR: []string{"가"}}
	assert.Equal(t, []string{"가"}, list.In(English))
}
