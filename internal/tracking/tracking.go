// Package tracking finds shipment tracking identifiers in free-text order notes.
package tracking

import (
	"net/url"
	"regexp"
	"strings"
)

type Kind string

const (
	// KindCarrier is the postal format: 2 letters, 9 digits, 2 letters.
	KindCarrier Kind = "carrier"
	// KindGeneric is any other 6-20 character alphanumeric identifier.
	KindGeneric Kind = "generic"
)

type Code struct {
	Value string `json:"value"`
	Kind  Kind   `json:"kind"`
}

const (
	minGenericLen = 6
	maxGenericLen = 20

	CarrierName        = "Correios"
	carrierTrackingURL = "https://www.correios.com.br/precisa-de-ajuda/rastreamento-de-objetos"
)

// Order matters: the first pattern that yields an acceptable code wins,
// regardless of where in the text the other patterns would match.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:rastreio|tracking|código|code|correios)[\s:]*([A-Z]{2}[\s\-]?\d{9}[\s\-]?[A-Z]{2})`),
	regexp.MustCompile(`([A-Z]{2}[\s\-]?\d{9}[\s\-]?[A-Z]{2})`),
	regexp.MustCompile(`([A-Z]{2})[\s\-]?(\d{9})[\s\-]?([A-Z]{2})`),
	regexp.MustCompile(`(?i)(?:rastreio|tracking|código|code)[\s:]*([A-Z0-9]{6,20})`),
	regexp.MustCompile(`(?i)(?:rastreio|tracking|código|code)[\s:]*(\d{6,20})`),
}

var carrierFormat = regexp.MustCompile(`^[A-Z]{2}\d{9}[A-Z]{2}$`)

var separators = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "-", "")

// Extract returns the highest-priority tracking code found in text.
func Extract(text string) (Code, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		code := normalize(m[1])
		if IsCarrierFormat(code) {
			return Code{Value: code, Kind: KindCarrier}, true
		}

		if len(m) == 4 {
			if assembled := normalize(m[1] + m[2] + m[3]); IsCarrierFormat(assembled) {
				return Code{Value: assembled, Kind: KindCarrier}, true
			}
		}

		if n := len(code); n >= minGenericLen && n <= maxGenericLen {
			return Code{Value: code, Kind: KindGeneric}, true
		}
	}
	return Code{}, false
}

func IsCarrierFormat(code string) bool {
	return carrierFormat.MatchString(code)
}

// URL is the public tracking page for code. Codes outside the carrier format
// get the carrier's search page without a prefilled code.
func URL(code string) string {
	if IsCarrierFormat(code) {
		return carrierTrackingURL + "?objetos=" + url.QueryEscape(code)
	}
	return carrierTrackingURL
}

func normalize(s string) string {
	return separators.Replace(strings.ToUpper(strings.TrimSpace(s)))
}
