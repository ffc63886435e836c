package types

// I18nText holds a bilingual label. ZhHans falls back to EnUS when empty.
type I18nText struct {
	EnUS   string `json:"en_US"`
	ZhHans string `json:"zh_Hans,omitempty"`
}

// NewI18nText builds a bilingual text pair.
func NewI18nText(en, zh string) I18nText {
	return I18nText{EnUS: en, ZhHans: zh}
}

// In returns the text for the given locale, falling back to en_US.
func (t I18nText) In(locale string) string {
	if locale == "zh_Hans" && t.ZhHans != "" {
		return t.ZhHans
	}
	return t.EnUS
}
