// Package notify turns errors into user-visible notification events. It is
// the only place an error becomes a localized message; it never changes the
// outcome of the operation that failed.
package notify

import (
	"context"
	"strings"

	"golang.org/x/text/language"

	"github.com/avatarstudio/avatargw/internal/domain"
)

// Canonical reduces a locale tag to its base language ("zh-CN" -> "zh").
// Unparseable input is lowercased and returned as is.
func Canonical(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return strings.ToLower(locale)
	}
	base, _ := tag.Base()
	return base.String()
}

// LocalizedMessage picks the message to show for env in locale.
//
// Order: message_<locale>, then (when locale is the default) message, then
// message_<defaultLocale>, then message, then "".
func LocalizedMessage(env domain.VendorErrorEnvelope, locale, defaultLocale string) string {
	locale, defaultLocale = Canonical(locale), Canonical(defaultLocale)
	if locale == "" {
		locale = defaultLocale
	}
	if m := localized(env, locale); m != "" {
		return m
	}
	if locale == defaultLocale && env.Message != "" {
		return env.Message
	}
	if m := localized(env, defaultLocale); m != "" {
		return m
	}
	return env.Message
}

// localized finds message_<locale>, accepting region variants like zh_CN.
func localized(env domain.VendorErrorEnvelope, locale string) string {
	if locale == "" {
		return ""
	}
	if m := env.Localized[locale]; m != "" {
		return m
	}
	for k, m := range env.Localized {
		if m != "" && Canonical(k) == locale {
			return m
		}
	}
	return ""
}

// Locales matches client preferences against the supported locales.
type Locales struct {
	def       string
	supported []string
	matcher   language.Matcher
}

// NewLocales builds a matcher. The default locale always ranks first.
func NewLocales(defaultLocale string, supported []string) *Locales {
	def := Canonical(defaultLocale)
	if def == "" {
		def = "en"
	}
	l := &Locales{def: def, supported: []string{def}}
	for _, s := range supported {
		c := Canonical(s)
		if c != "" && !contains(l.supported, c) {
			l.supported = append(l.supported, c)
		}
	}
	tags := make([]language.Tag, 0, len(l.supported))
	for _, s := range l.supported {
		tags = append(tags, language.Make(s))
	}
	l.matcher = language.NewMatcher(tags)
	return l
}

// Default returns the default locale.
func (l *Locales) Default() string { return l.def }

// Supported returns the supported locales, default first.
func (l *Locales) Supported() []string { return append([]string(nil), l.supported...) }

// Match resolves an Accept-Language header to a supported locale.
func (l *Locales) Match(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return l.def
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.def
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return l.def
	}
	return l.supported[idx]
}

type localeKey struct{}

// WithLocale attaches the request locale to ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFromContext returns the locale set by WithLocale, or "".
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(localeKey{}).(string)
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
