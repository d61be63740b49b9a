package gateway

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/avatarstudio/avatargw/internal/domain"
)

const localizedPrefix = "message_"

// ParseErrorEnvelope extracts `{error: {err_code, message, message_<locale>}}`
// from a reply body. Without err_code the failure is not vendor-reported and
// nil is returned.
func ParseErrorEnvelope(body []byte) *domain.VendorErrorEnvelope {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil
	}
	e := gjson.GetBytes(body, "error")
	if !e.IsObject() {
		return nil
	}
	code := e.Get("err_code")
	if !code.Exists() || code.String() == "" {
		return nil
	}

	env := &domain.VendorErrorEnvelope{
		Code:      code.String(),
		Message:   e.Get("message").String(),
		Localized: map[string]string{},
	}
	e.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if strings.HasPrefix(key, localizedPrefix) && v.String() != "" {
			env.Localized[strings.TrimPrefix(key, localizedPrefix)] = v.String()
		}
		return true
	})
	return env
}
