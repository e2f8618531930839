package llm

import (
	"strings"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/generator"
)

// fatalMarkers identify provider errors that no amount of retrying will fix.
// Rate limiting is deliberately absent: a 429 usually clears within the
// backoff window.
var fatalMarkers = []string{
	"credit balance",
	"quota",
	"billing",
	"invalid api key",
	"invalid x-api-key",
	"authentication",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// wrapFatalError marks fatal provider errors as permanent so the generator
// stops retrying. Other errors are returned unchanged.
func wrapFatalError(err error) error {
	if err == nil || generator.IsPermanent(err) {
		return err
	}
	if isFatalAPIError(err) {
		return generator.Permanent(err)
	}
	return err
}

