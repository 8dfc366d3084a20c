package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/shopspring/decimal"
)

// Template placeholder names
const (
	PlaceholderName          = "name"
	PlaceholderDueDate       = "due_date"
	PlaceholderAmount        = "amount"
	PlaceholderPlan          = "plan"
	PlaceholderServer        = "server"
	PlaceholderDaysRemaining = "days_remaining"
	PlaceholderInvoiceLink   = "invoice_link"
)

// DueDateLayout is the display format of {{due_date}}
const DueDateLayout = "02/01/2006"

// CurrencyPrefix is prepended to {{amount}}
const CurrencyPrefix = "R$ "

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)

// TemplateData is the client snapshot a template is rendered against
type TemplateData struct {
	Name          string
	DueDate       time.Time
	Amount        decimal.Decimal
	Plan          string
	Server        string
	DaysRemaining int
	InvoiceLink   string
}

// RenderOptions carries the environment needed to derive TemplateData
type RenderOptions struct {
	Location       *time.Location
	PaymentBaseURL string
}

// NewTemplateData derives render values from a client as of now
func NewTemplateData(client *models.Client, now time.Time, opts RenderOptions) TemplateData {
	data := TemplateData{
		Name:          client.Name,
		DueDate:       client.DueDate,
		Amount:        client.Price,
		Plan:          client.PlanName,
		Server:        client.ServerName,
		DaysRemaining: models.DaysUntilDue(client.DueDate, now, opts.Location),
	}
	if client.InvoiceToken != nil && *client.InvoiceToken != "" {
		data.InvoiceLink = InvoiceLink(opts.PaymentBaseURL, *client.InvoiceToken)
	}
	return data
}

// InvoiceLink builds the payment link for an outstanding invoice token
func InvoiceLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/pay/" + token
}

// RenderTemplate substitutes known placeholders; unknown tokens are kept verbatim
func RenderTemplate(template string, data TemplateData) string {
	values := map[string]string{
		PlaceholderName:          data.Name,
		PlaceholderDueDate:       formatDueDate(data.DueDate),
		PlaceholderAmount:        FormatAmount(data.Amount),
		PlaceholderPlan:          data.Plan,
		PlaceholderServer:        data.Server,
		PlaceholderDaysRemaining: strconv.Itoa(data.DaysRemaining),
		PlaceholderInvoiceLink:   data.InvoiceLink,
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		m := placeholderPattern.FindStringSubmatch(token)
		if len(m) != 2 {
			return token
		}
		if v, ok := values[strings.ToLower(m[1])]; ok {
			return v
		}
		return token
	})
}

func formatDueDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DueDateLayout)
}

// FormatAmount renders a decimal as "R$ 1.234,50"
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return CurrencyPrefix + sign + b.String() + "," + frac
}
