package services

import (
	"testing"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	data := TemplateData{
		Name:          "Maria",
		DueDate:       time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.RequireFromString("1234.5"),
		Plan:          "Premium",
		Server:        "BR-01",
		DaysRemaining: -2,
		InvoiceLink:   "https://pay.example/pay/abc",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "all placeholders", template: "Hi {{name}}, {{plan}} on {{server}} due {{due_date}}: {{amount}} ({{days_remaining}}d) {{invoice_link}}",
			want: "Hi Maria, Premium on BR-01 due 05/04/2026: R$ 1.234,50 (-2d) https://pay.example/pay/abc"},
		{name: "inner whitespace", template: "{{ name }}!", want: "Maria!"},
		{name: "unknown token kept", template: "{{name}} {{coupon}}", want: "Maria {{coupon}}"},
		{name: "unbalanced braces", template: "{{name", want: "{{name"},
		{name: "no placeholders", template: "plain text", want: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, data))
		})
	}
}

func TestRenderTemplateIsDeterministic(t *testing.T) {
	data := TemplateData{Name: "Ana", Amount: decimal.NewFromInt(35)}
	tpl := "{{name}} owes {{amount}} {{invoice_link}}"

	first := RenderTemplate(tpl, data)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, RenderTemplate(tpl, data))
	}
	assert.Equal(t, "Ana owes R$ 35,00 ", first)
}

func TestNewTemplateData(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	client := &models.Client{
		Name:         "João",
		DueDate:      time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC),
		Price:        decimal.RequireFromString("29.9"),
		PlanName:     "Basic",
		InvoiceToken: utils.ToPtr("tok123"),
	}

	data := NewTemplateData(client, now, RenderOptions{Location: time.UTC, PaymentBaseURL: "https://pay.example/"})
	assert.Equal(t, 3, data.DaysRemaining)
	assert.Equal(t, "https://pay.example/pay/tok123", data.InvoiceLink)

	client.InvoiceToken = nil
	data = NewTemplateData(client, now, RenderOptions{})
	assert.Empty(t, data.InvoiceLink)
	assert.Equal(t, "R$ 29,90", FormatAmount(data.Amount))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "R$ 0,00", FormatAmount(decimal.Zero))
	assert.Equal(t, "R$ 100,00", FormatAmount(decimal.NewFromInt(100)))
	assert.Equal(t, "R$ 1.000.000,10", FormatAmount(decimal.RequireFromString("1000000.1")))
	assert.Equal(t, "R$ -5,25", FormatAmount(decimal.RequireFromString("-5.25")))
}
