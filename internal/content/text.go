package content

// Text is a string with a Korean and an English rendition.
type Text struct {
	KR string `yaml:"kr" json:"kr"`
	EN string `yaml:"en" json:"en"`
}

// In returns the rendition for l, falling back to Korean.
func (t Text) In(l Lang) string {
	if l.Code() == "EN" && t.EN != "" {
		return t.EN
	}
	return t.KR
}

// TextList is a list of strings per language.
type TextList struct {
	KR []string `yaml:"kr" json:"kr"`
	EN []string `yaml:"en" json:"en"`
}

// In returns the list for l, falling back to Korean.
func (t TextList) In(l Lang) []string {
	if l.Code() == "EN" && len(t.EN) > 0 {
		return t.EN
	}
	return t.KR
}
