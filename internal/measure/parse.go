// Package measure turns raw scale payloads into decimal measurements.
package measure

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Signed decimal with up to 7 integer digits, e.g. "+00123.45" inside "ST,GS,+00123.45 kg".
var numberPattern = regexp.MustCompile(`[-+]?\d{1,7}(?:\.\d+)?`)

// Parse extracts the first number in raw. Thousands separators are removed before
// matching. It returns false when raw holds no convertible number.
func Parse(raw string) (*apd.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	s = strings.ReplaceAll(s, ",", "")

	m := numberPattern.FindString(s)
	if m == "" {
		return nil, false
	}
	d, _, err := apd.NewFromString(m)
	if err != nil {
		return nil, false
	}
	return d, true
}
