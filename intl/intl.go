// Package intl renders user-facing texts in the recipient's language.
package intl

import (
	"embed"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*
var localeFiles embed.FS

// Translator looks messages up in the embedded locale bundle.
type Translator struct {
	bundle   *i18n.Bundle
	fallback string
}

var (
	defaultTranslator *Translator
	defaultOnce       sync.Once
)

// Default returns the process translator with English as fallback.
func Default() *Translator {
	defaultOnce.Do(func() {
		defaultTranslator = MustNew("en")
	})
	return defaultTranslator
}

func loadBundle() *i18n.Bundle {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	return bundle
}

func New(fallback string) (*Translator, error) {
	bundle := loadBundle()
	entries, err := localeFiles.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		file := "locales/" + e.Name()
		buf, err := localeFiles.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(buf, filepath.Base(file)); err != nil {
			return nil, err
		}
	}
	return &Translator{bundle: bundle, fallback: Normalize(fallback)}, nil
}

func MustNew(fallback string) *Translator {
	t, err := New(fallback)
	if err != nil {
		panic(err)
	}
	return t
}

// Normalize reduces a user language ("es-419", "PT_br") to its base tag.
// Unknown or empty values yield "en".
func Normalize(lang string) string {
	lang = strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if lang == "" {
		return "en"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}

// T renders message id for lang. Missing messages render as the id.
func (t *Translator) T(lang, id string, data map[string]any) string {
	localizer := i18n.NewLocalizer(t.bundle, Normalize(lang), t.fallback)
	out, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil || out == "" {
		return id
	}
	return out
}

// Func binds the translator to one language.
func (t *Translator) Func(lang string) func(id string, data map[string]any) string {
	return func(id string, data map[string]any) string {
		return t.T(lang, id, data)
	}
}
