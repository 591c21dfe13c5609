// Package i18n renders participant-facing messages in the event's languages.
package i18n

import (
	"embed"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/connect-event/backend/internal/votingwindow"
)

//go:embed active.*.toml
var localeFS embed.FS

// Message keys.
const (
	KeyWindowOpen         = "window_open"
	KeyWindowUnrestricted = "window_unrestricted"
	KeyWindowNotStarted   = "window_not_started"
	KeyWindowEnded        = "window_ended"
	KeyQuestionNotFound   = "question_not_found"
	KeySelfVote           = "self_vote"
	KeyNotVotable         = "not_votable"
	KeyVoteBudgetExceeded = "vote_budget_exceeded"
)

const timeLayout = "02/01/2006 15:04"

// Translator wraps a go-i18n bundle with the event's default locale and time zone.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	loc             *time.Location
	logger          *zap.Logger
}

// NewTranslator loads the embedded catalogs. Unknown default locales fall back to pt-BR.
func NewTranslator(defaultLocale string, loc *time.Location, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range []string{"active.pt-BR.toml", "active.en.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			logger.Error("i18n: load catalog", zap.String("file", file), zap.Error(err))
		}
	}

	return &Translator{bundle: bundle, defaultLanguage: tag, loc: loc, logger: logger}
}

// T renders key for the given locale or Accept-Language value, falling back to the
// default locale and finally to the key itself.
func (t *Translator) T(locale, key string, data map[string]any) string {
	return t.localize(locale, &i18n.LocalizeConfig{MessageID: key, TemplateData: data})
}

// Plural renders a key with plural forms selected by count.
func (t *Translator) Plural(locale, key string, count int) string {
	return t.localize(locale, &i18n.LocalizeConfig{
		MessageID:    key,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func (t *Translator) localize(locale string, cfg *i18n.LocalizeConfig) string {
	if cfg.MessageID == "" {
		return ""
	}
	languages := []string{}
	if locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	msg, err := i18n.NewLocalizer(t.bundle, languages...).Localize(cfg)
	if err != nil {
		t.logger.Warn("i18n: localize failed",
			zap.String("key", cfg.MessageID),
			zap.Strings("locales", languages),
			zap.Error(err),
		)
		return cfg.MessageID
	}
	return msg
}

// WindowReason describes a voting window decision, with boundaries shown in the event time zone.
func (t *Translator) WindowReason(locale string, d votingwindow.Decision) string {
	switch {
	case d.Reason.Code == votingwindow.ReasonNotStarted:
		return t.T(locale, KeyWindowNotStarted, map[string]any{"Start": t.Format(d.Reason.Boundary)})
	case d.Reason.Code == votingwindow.ReasonEnded:
		return t.T(locale, KeyWindowEnded, nil)
	case d.Window == nil:
		return t.T(locale, KeyWindowUnrestricted, nil)
	}
	return t.T(locale, KeyWindowOpen, map[string]any{"End": t.Format(d.Window.End)})
}

// Format renders ts in the event time zone.
func (t *Translator) Format(ts time.Time) string {
	return ts.In(t.loc).Format(timeLayout)
}
