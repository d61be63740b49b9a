package notify

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/infra/metrics"
)

// Event is a user-visible notification.
type Event struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Level   string    `json:"level"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	Time    time.Time `json:"time"`
}

// Publisher delivers events to subscribers. Implemented by Hub.
type Publisher interface {
	Publish(ev Event)
}

// Bridge implements domain.Notifier.
type Bridge struct {
	pub     Publisher
	locales *Locales
	log     *slog.Logger
}

var _ domain.Notifier = (*Bridge)(nil)

// NewBridge creates a bridge. A nil publisher only logs and counts events.
func NewBridge(pub Publisher, locales *Locales, log *slog.Logger) *Bridge {
	if locales == nil {
		locales = NewLocales("en", nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{pub: pub, locales: locales, log: log.With("component", "notify")}
}

// Locales returns the locale matcher used for requests.
func (b *Bridge) Locales() *Locales { return b.locales }

// Notify emits a toast event for err. A nil err is ignored.
func (b *Bridge) Notify(ctx context.Context, err error) {
	if err == nil {
		return
	}
	ev := b.Describe(ctx, err)
	metrics.Notifications.WithLabelValues(metricCode(ev.Code)).Inc()
	b.log.Debug("notify", "code", ev.Code, "status", ev.Status, "error", err)
	if b.pub != nil {
		b.pub.Publish(ev)
	}
}

// Describe builds the event for err without emitting it.
func (b *Bridge) Describe(ctx context.Context, err error) Event {
	locale := LocaleFromContext(ctx)
	if locale == "" {
		locale = b.locales.Default()
	}
	ev := Event{
		ID:    uuid.NewString(),
		Kind:  "toast",
		Level: "error",
		Time:  time.Now().UTC(),
	}

	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		ev.Status = httpErr.StatusCode
	}

	if env := domain.EnvelopeOf(err); env != nil {
		ev.Code = env.Code
		ev.Message = LocalizedMessage(*env, locale, b.locales.Default())
		if len(env.Localized) == 0 && isCatalogText(env.Code, env.Message) {
			ev.Message = catalogMessage(env.Code, locale)
		}
		if ev.Message == "" {
			// Vendor-reported without text: keep the vendor code.
			if httpErr != nil {
				ev.Message = catalogMessage("http", locale, httpErr.StatusCode)
			} else {
				ev.Message = catalogMessage(CodeUnknown, locale)
			}
		}
		return ev
	}

	switch {
	case httpErr != nil:
		ev.Code = "http_" + strconv.Itoa(httpErr.StatusCode)
		ev.Message = catalogMessage("http", locale, httpErr.StatusCode)
	case errors.Is(err, domain.ErrValidation):
		ev.Code = CodeValidation
		ev.Message = catalogMessage(CodeValidation, locale)
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
			ev.Message += " (" + strings.Join(vErr.Fields, ", ") + ")"
		}
	case errors.Is(err, domain.ErrVendorTimeout):
		ev.Code = CodeTimeout
		ev.Message = catalogMessage(CodeTimeout, locale)
	case errors.Is(err, domain.ErrTransport):
		ev.Code = CodeTransport
		ev.Message = catalogMessage(CodeTransport, locale)
	default:
		ev.Code = CodeUnknown
		ev.Message = catalogMessage(CodeUnknown, locale)
	}
	return ev
}

// CodeVendor labels vendor-reported codes in metrics. Vendor codes come
// from upstream and are not a bounded label set.
const CodeVendor = "vendor"

// metricCode maps an event code onto a bounded label value.
func metricCode(code string) string {
	switch code {
	case CodeTransport, CodeValidation, CodeTimeout, CodeUnknown, CodeProcessingFailed:
		return code
	}
	if n, ok := strings.CutPrefix(code, "http_"); ok {
		if s, err := strconv.Atoi(n); err == nil && s >= 100 && s <= 599 {
			return code
		}
	}
	return CodeVendor
}
