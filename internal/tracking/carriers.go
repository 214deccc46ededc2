package tracking

import (
	"net/url"
	"strings"
)

// Carrier describes how to build a tracking link for a shipping company.
// URLTemplate contains a {code} placeholder.
type Carrier struct {
	Slug        string `json:"slug" yaml:"slug"`
	Name        string `json:"name" yaml:"name"`
	URLTemplate string `json:"url_template" yaml:"url_template"`
}

func (c Carrier) URL(code string) string {
	return strings.ReplaceAll(c.URLTemplate, "{code}", url.QueryEscape(code))
}

// Directory resolves carrier slugs reported by shipment integrations.
type Directory struct {
	carriers map[string]Carrier
}

func NewDirectory(carriers ...Carrier) *Directory {
	d := &Directory{carriers: make(map[string]Carrier, len(carriers))}
	for _, c := range carriers {
		d.carriers[strings.ToLower(c.Slug)] = c
	}
	return d
}

func DefaultDirectory() *Directory {
	return NewDirectory(Carrier{
		Slug:        "correios",
		Name:        CarrierName,
		URLTemplate: carrierTrackingURL + "?objetos={code}",
	})
}

func (d *Directory) Lookup(slug string) (Carrier, bool) {
	c, ok := d.carriers[strings.ToLower(strings.TrimSpace(slug))]
	return c, ok
}
