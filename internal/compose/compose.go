// Package compose renders notification text from templates with literal
// {placeholder} substitution.
package compose

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

const (
	DateLayout       = "02/01/2006"
	noShippingMethod = "Not specified"
	freeShipping     = "Free"
)

// Values maps placeholder names, without braces, to their text.
type Values map[string]string

// Render replaces every {name} in tmpl with its value in one pass. Values are
// inserted verbatim and never scanned for further placeholders.
func Render(tmpl string, v Values) string {
	if len(v) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(v)*2)
	for name, val := range v {
		pairs = append(pairs, "{"+name+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// TemplateSource returns a configured template, or "" when none is set.
type TemplateSource interface {
	Template(ctx context.Context, name string) (string, error)
}

type Composer struct {
	templates TemplateSource
	printer   *message.Printer
}

func New(templates TemplateSource, lang language.Tag) *Composer {
	return &Composer{
		templates: templates,
		printer:   message.NewPrinter(lang),
	}
}

// Compose renders the configured template for name, falling back to the
// built-in default. An empty result means there is nothing to send.
func (c *Composer) Compose(ctx context.Context, name string, v Values) (string, error) {
	var tmpl string
	if c.templates != nil {
		t, err := c.templates.Template(ctx, name)
		if err != nil {
			return "", fmt.Errorf("template %s: %w", name, err)
		}
		tmpl = t
	}
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate(name)
	}
	return Render(tmpl, v), nil
}

// Money formats amount as plain text in the order currency.
func (c *Composer) Money(amount float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = defaultCurrency
	}
	return c.printer.Sprint(currency.Symbol(unit.Amount(amount)))
}

// OrderValues are the placeholders shared by every notification kind.
func (c *Composer) OrderValues(o model.Order, status string) Values {
	v := Values{
		"customer_name":   o.CustomerFirstName,
		"order_number":    o.DisplayNumber(),
		"order_total":     c.Money(o.Total, o.Currency),
		"order_date":      formatDate(o),
		"products_list":   c.productsList(o),
		"status":          StatusLabel(status),
		"shipping_method": shippingMethod(o),
		"shipping_total":  freeShipping,
	}
	if o.ShippingTotal != 0 {
		v["shipping_total"] = c.Money(o.ShippingTotal, o.Currency)
	}
	return v
}

func (c *Composer) TrackingValues(o model.Order, code, url, carrier string) Values {
	v := c.OrderValues(o, o.Status)
	v["tracking_code"] = code
	v["tracking_url"] = url
	v["shipping_company"] = carrier
	return v
}

func (c *Composer) NoteValues(o model.Order, note string) Values {
	v := c.OrderValues(o, o.Status)
	v["note_content"] = StripHTML(note)
	return v
}

func (c *Composer) productsList(o model.Order) string {
	lines := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, "• "+it.Name+" (Qty: "+strconv.Itoa(it.Quantity)+") - "+c.Money(it.Total, o.Currency))
	}
	return strings.Join(lines, "\n")
}

func shippingMethod(o model.Order) string {
	if len(o.ShippingLines) == 0 {
		return noShippingMethod
	}
	methods := make([]string, 0, len(o.ShippingLines))
	for _, l := range o.ShippingLines {
		if l.MethodTitle != "" {
			methods = append(methods, l.MethodTitle)
		} else {
			methods = append(methods, l.Name)
		}
	}
	return strings.Join(methods, ", ")
}

func formatDate(o model.Order) string {
	if o.CreatedAt.IsZero() {
		return ""
	}
	return o.CreatedAt.Format(DateLayout)
}

var defaultCurrency = currency.MustParseISO("BRL")

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags and decodes entities.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTag.ReplaceAllString(s, "")))
}
