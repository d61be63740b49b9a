package notify

import "fmt"

// Generic event codes for errors without a vendor envelope.
const (
	CodeTransport        = "transport"
	CodeValidation       = "validation"
	CodeTimeout          = "timeout"
	CodeUnknown          = "unknown"
	CodeProcessingFailed = "processing_failed"
)

// catalog holds the built-in messages, keyed by code then locale.
// "http" takes the status code as its only argument.
var catalog = map[string]map[string]string{
	"http": {
		"en": "The upstream service returned HTTP %d. Please try again later.",
		"zh": "上游服务返回 HTTP %d，请稍后重试。",
	},
	CodeTransport: {
		"en": "Could not reach the upstream service. Check your network and try again.",
		"zh": "无法连接上游服务，请检查网络后重试。",
	},
	CodeValidation: {
		"en": "Some required fields are missing.",
		"zh": "缺少必填字段。",
	},
	CodeTimeout: {
		"en": "The task did not finish in time.",
		"zh": "任务未能在规定时间内完成。",
	},
	CodeProcessingFailed: {
		"en": "processing failed",
		"zh": "处理失败",
	},
	CodeUnknown: {
		"en": "Something went wrong. Please try again.",
		"zh": "发生未知错误，请重试。",
	},
}

// catalogMessage returns the built-in text for code in locale, falling back
// to English.
func catalogMessage(code, locale string, args ...any) string {
	msgs, ok := catalog[code]
	if !ok {
		msgs = catalog[CodeUnknown]
	}
	m, ok := msgs[Canonical(locale)]
	if !ok {
		m = msgs["en"]
	}
	if len(args) > 0 {
		return fmt.Sprintf(m, args...)
	}
	return m
}

// isCatalogText reports whether msg is the built-in English text for code.
// Such messages were produced locally and may be translated.
func isCatalogText(code, msg string) bool {
	msgs, ok := catalog[code]
	return ok && msgs["en"] == msg
}
