package email

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"9.99", "9.99"},
		{"100", "100.00"},
		{"1234.5", "1,234.50"},
		{"1234567.891", "1,234,567.89"},
		{"-1234.5", "-1,234.50"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestBuildOrderConfirmationBody(t *testing.T) {
	body := BuildOrderConfirmationBody(OrderSummary{
		OrderNumber: "ORD-20260101-ABCDEF12",
		Items: []OrderItem{
			{ProductID: "p1", Name: "Desk <Lamp>", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("1500")},
		},
		Subtotal:     decimal.RequireFromString("1520.00"),
		ShippingCost: decimal.Zero,
		Tax:          decimal.RequireFromString("152.00"),
		Total:        decimal.RequireFromString("1672.00"),
	})

	assert.Contains(t, body, "ORD-20260101-ABCDEF12")
	assert.Contains(t, body, "Desk &lt;Lamp&gt;")
	assert.Contains(t, body, ">p2<")
	assert.Contains(t, body, "$20.00")
	assert.Contains(t, body, "$1,672.00")
}

func TestBuildStatusUpdateBody(t *testing.T) {
	body := BuildStatusUpdateBody(StatusUpdate{
		OrderNumber: "ORD-1",
		Previous:    "PROCESSING",
		Current:     "SHIPPED",
		Total:       decimal.RequireFromString("31.99"),
		Notes:       "Tracking: 1Z999",
	})

	assert.Contains(t, body, "<strong>Processing</strong> to <strong>Shipped</strong>")
	assert.Contains(t, body, "Tracking: 1Z999")
	assert.Contains(t, body, "$31.99")
}

func TestService_SendStatusUpdate(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s := NewService("mail.local", "1025", "shop@example.com")
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := s.SendStatusUpdate("buyer@example.com", StatusUpdate{OrderNumber: "ORD-1", Previous: "PENDING", Current: "CANCELLED"})

	require.NoError(t, err)
	assert.Equal(t, "mail.local:1025", gotAddr)
	assert.Equal(t, "shop@example.com", gotFrom)
	assert.Equal(t, []string{"buyer@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Order ORD-1 is now Cancelled\r\n")
}

func TestService_SendOrderConfirmation_Error(t *testing.T) {
	s := NewService("mail.local", "1025", "shop@example.com")
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := s.SendOrderConfirmation("buyer@example.com", OrderSummary{OrderNumber: "ORD-1"})

	assert.ErrorContains(t, err, "connection refused")
}
