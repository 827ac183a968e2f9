package intel

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// Indian mobile numbers, optionally with a 91 country prefix.
	phonePattern = regexp.MustCompile(`(?:\+91|91)?[6-9]\d{9}`)

	// UPI handles: name@bank. Also matches email addresses, which is the
	// intended tolerance: scammers hand out both.
	upiPattern = regexp.MustCompile(`\b[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\b`)

	urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

	// Masked card/account formats (XXXX-XXXX-1234, ****1234) and long
	// grouped digit runs.
	maskedAccountPattern  = regexp.MustCompile(`(?i)(?:XXXX|\*{4})-?(?:XXXX|\*{4})-?\d{4,}`)
	groupedAccountPattern = regexp.MustCompile(`\b\d{4,}-?\d{4,}-?\d{4,}\b`)
)

// NormalizePhone reduces an Indian phone to its 10-digit national form, or
// returns "" if the input is not a plausible mobile number.
func NormalizePhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	switch {
	case len(digits) == 10:
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	default:
		return ""
	}
	if digits[0] < '6' {
		return ""
	}
	return digits
}

// NormalizeURL lower-cases the scheme and host and strips trailing
// punctuation that regex matching tends to drag along.
func NormalizeURL(raw string) string {
	raw = strings.TrimRight(raw, ".,;:!?)")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if len(u.String()) > 500 {
		return ""
	}
	return u.String()
}

// NormalizeUPI lower-cases the handle for stable dedup.
func NormalizeUPI(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 50 || !strings.Contains(raw, "@") {
		return ""
	}
	return strings.ToLower(raw)
}

// NormalizeAccount strips spaces around an account-like token.
func NormalizeAccount(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 30 {
		return ""
	}
	return strings.ToUpper(raw)
}
