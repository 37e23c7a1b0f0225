package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// currencySymbols maps the currency symbols the purchase and
// subscription detectors recognize to their ISO currency codes.
var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

// contextAmountRe matches a currency amount immediately preceded by one
// of the "anchored" phrases the spec calls out: "order total: $X",
// "amount charged: $X", "total: $X", "payment of $X".
var contextAmountRe = regexp.MustCompile(`(?i)(?:order total|total|amount charged|payment of)\s*[:\s]\s*([$€£¥])\s?([0-9][0-9.,']*)`)

// fallbackAmountRe is the unanchored scan used when no context phrase
// matches: any currency-tagged number anywhere in the text.
var fallbackAmountRe = regexp.MustCompile(`([$€£¥])\s?([0-9][0-9.,']*)`)

// euroTrailingCentsRe detects the European decimal convention: a comma
// followed by exactly two digits at the end of the numeric token, which
// means dots in the token are thousand separators and the comma is the
// decimal point.
var euroTrailingCentsRe = regexp.MustCompile(`,\d{2}$`)

// parseAmountToken converts a raw numeric token (as captured alongside
// a currency symbol) to a float, applying the European decimal
// convention when the symbol is EUR and the token ends in ",dd".
func parseAmountToken(symbol, token string) (float64, bool) {
	token = strings.TrimSpace(token)
	// The captured token can run into sentence punctuation ("$15.49.").
	token = strings.TrimRight(token, ".,'")
	if token == "" {
		return 0, false
	}

	if symbol == "€" && euroTrailingCentsRe.MatchString(token) {
		token = strings.ReplaceAll(token, ".", "")
		token = strings.Replace(token, ",", ".", 1)
	} else {
		token = strings.ReplaceAll(token, "'", "")
		token = strings.ReplaceAll(token, ",", "")
	}

	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// extractAmount implements the two-stage amount-extraction policy:
// context-anchored patterns first, then an unanchored fallback scan
// capturing up to 5 currency-tagged amounts and returning the largest
// that falls within (0, 500000].
func extractAmount(text string) (amount float64, currency string, ok bool) {
	if m := contextAmountRe.FindStringSubmatch(text); m != nil {
		if v, okVal := parseAmountToken(m[1], m[2]); okVal && v > 0 {
			return v, currencySymbols[m[1]], true
		}
	}

	matches := fallbackAmountRe.FindAllStringSubmatch(text, 5)
	var best float64
	var bestCurrency string
	found := false
	for _, m := range matches {
		v, okVal := parseAmountToken(m[1], m[2])
		if !okVal || v <= 0 || v > 500000 {
			continue
		}
		if !found || v > best {
			best = v
			bestCurrency = currencySymbols[m[1]]
			found = true
		}
	}
	return best, bestCurrency, found
}

// orderNumberCandidateRe pulls candidate order/confirmation/invoice
// numbers out of free text, including the bare "#TOKEN" shorthand often
// seen in subject lines.
var orderNumberCandidateRe = regexp.MustCompile(`(?i)(?:order\s*(?:number|#|confirmation)?|confirmation\s*(?:number|#)?|invoice\s*(?:number|#)?|#)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9-]{3,29})`)

// cssLikeSuffixRe excludes tokens that are really CSS property name
// fragments ("-collapse", "-color", ...) accidentally captured from an
// HTML body leaking into plain text.
var cssLikeSuffixRe = regexp.MustCompile(`(?i)-(collapse|color|size|width|height|radius|weight|style|family)$`)

// isValidOrderNumber applies the spec's order-number validity checks:
// length 5-30, leading alphanumeric, overall [A-Z0-9-]+, and not a
// CSS-property-like suffix.
func isValidOrderNumber(token string) bool {
	if len(token) < 5 || len(token) > 30 {
		return false
	}
	if cssLikeSuffixRe.MatchString(token) {
		return false
	}
	upper := strings.ToUpper(token)
	for i, r := range upper {
		if i == 0 {
			if !isAlphaNumeric(r) {
				return false
			}
			continue
		}
		if !isAlphaNumeric(r) && r != '-' {
			return false
		}
	}
	return true
}

func isAlphaNumeric(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// extractOrderNumber scans text for the first candidate order number
// that passes validity checks.
func extractOrderNumber(text string) (string, bool) {
	for _, m := range orderNumberCandidateRe.FindAllStringSubmatch(text, -1) {
		candidate := strings.ToUpper(m[1])
		if isValidOrderNumber(candidate) {
			return candidate, true
		}
	}
	return "", false
}
