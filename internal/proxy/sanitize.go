package proxy

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// linkTemplate is the deep link Telegram clients understand.
const linkTemplate = "tg://proxy?server=%s&port=%d&secret=%s"

// invalidChars matches everything a source is not allowed to smuggle into
// a secret or link field.
var invalidChars = regexp.MustCompile(`[@!#$%^&*()+:"'\[\]{}]`)

// CleanString strips the forbidden character set from s.
func CleanString(s string) string {
	return invalidChars.ReplaceAllString(s, "")
}

// Sanitize cleans the record in place and rebuilds its canonical link from
// (ip, port, cleaned secret). The rebuilt link overwrites whatever the
// source carried, malformed or not. It reports false when the triple is
// incomplete, in which case no usable link exists and the record must be
// dropped.
func (r *Record) Sanitize() bool {
	if r.Secret != "" {
		r.Secret = CleanString(r.Secret)
	}
	if r.TGLink != "" {
		r.TGLink = CleanString(r.TGLink)
	}
	if r.IP == "" || r.Port == 0 || r.Secret == "" {
		return false
	}
	r.TGLink = fmt.Sprintf(linkTemplate, r.IP, r.Port, r.Secret)
	return true
}

// SanitizeAll filters records down to those with a usable canonical link.
func SanitizeAll(records []Record, logger *zap.Logger) []Record {
	cleaned := make([]Record, 0, len(records))
	for _, rec := range records {
		if !rec.Sanitize() {
			logger.Debug("Dropping proxy without a usable tg link",
				zap.String("ip", rec.IP),
				zap.Int("port", rec.Port),
			)
			continue
		}
		cleaned = append(cleaned, rec)
	}
	return cleaned
}
