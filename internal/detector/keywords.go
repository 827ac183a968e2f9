package detector

import "regexp"

// signal is one deterministic scam indicator. Name is reported in
// Detection.MatchedSignals so tests and operators can see why a
// message scored.
type signal struct {
	name     string
	pattern  *regexp.Regexp
	weight   float64
	category string
}

// Indicator phrases tuned for Indian financial scam traffic: urgency
// language, account threats, credential requests, prize bait, link bait.
var signals = []signal{
	{"verify-urgency", regexp.MustCompile(`(?i)\b(verify|verification)\s+(immediately|now|urgent)\b`), 0.3, "bank_fraud"},
	{"account-blocked", regexp.MustCompile(`(?i)\baccount\s+(blocked|suspended|locked)\b`), 0.35, "bank_fraud"},
	{"upi-credential", regexp.MustCompile(`(?i)\bupi\s*(id|pin)\b`), 0.25, "upi_fraud"},
	{"financial-urgency", regexp.MustCompile(`(?i)\b(share|send|provide)\s+(your|ur)\s+(upi|bank)\b`), 0.3, "upi_fraud"},
	{"link-bait", regexp.MustCompile(`(?i)\b(click|visit|open)\s+(this\s+|the\s+)?(link|url)\b`), 0.25, "phishing"},
	{"urgency", regexp.MustCompile(`(?i)\b(urgent|urgently|immediately|asap)\b`), 0.15, "generic"},
	{"otp-request", regexp.MustCompile(`(?i)\b(otp|pin)\s+(required|needed)\b`), 0.25, "bank_fraud"},
	{"prize-claim", regexp.MustCompile(`(?i)\b(won|winner|prize|reward|lottery)\b.{0,40}\b(claim|collect)\b`), 0.3, "prize_scam"},
	{"kyc-pending", regexp.MustCompile(`(?i)\b(kyc|verification)\s+(pending|required)\b`), 0.25, "bank_fraud"},
	{"bank-action", regexp.MustCompile(`(?i)\b(bank|sbi|hdfc|icici|axis)\s+(account|block)\b`), 0.3, "bank_fraud"},
	{"explicit-phish", regexp.MustCompile(`(?i)\b(phishing|malicious)\b`), 0.5, "phishing"},
	{"money-transfer", regexp.MustCompile(`(?i)\b(transfer|send)\s+money\b`), 0.2, "generic"},
	{"callback-number", regexp.MustCompile(`(?i)\d{10,12}\s*(call|whatsapp)\b`), 0.2, "generic"},
}

// keywordScan scores text against the indicator table. The summed score is
// capped at maxKeywordScore so keywords alone never claim certainty.
func keywordScan(text string) (score float64, matched []string, category string) {
	best := 0.0
	for _, sig := range signals {
		if !sig.pattern.MatchString(text) {
			continue
		}
		score += sig.weight
		matched = append(matched, sig.name)
		if sig.weight > best && sig.category != "generic" {
			best = sig.weight
			category = sig.category
		}
	}
	if score > maxKeywordScore {
		score = maxKeywordScore
	}
	if category == "" && len(matched) > 0 {
		category = "generic"
	}
	return score, matched, category
}
