package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type OrderSummary struct {
	OrderNumber  string
	Items        []OrderItem
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

type StatusUpdate struct {
	OrderNumber string
	Previous    string
	Current     string
	Total       decimal.Decimal
	Notes       string
}

const layout = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">%s</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>

		%s

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This is an automated message. If you have any questions, please contact support.
		</p>
	</div>
</body>
</html>`

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(s OrderSummary) string {
	var rows strings.Builder
	for _, item := range s.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%s</td>
			</tr>`,
			html.EscapeString(name),
			item.Quantity,
			formatMoney(item.UnitPrice),
			formatMoney(lineTotal),
		))
	}

	content := fmt.Sprintf(`<p style="margin-top: 0;">Thank you for your order.</p>

		<h2 style="font-size: 18px; border-bottom: 2px solid #667eea; padding-bottom: 10px;">Order details</h2>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Product</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Unit price</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<table style="width: 100%%; font-size: 14px; color: #666;">
			<tr><td>Subtotal</td><td style="text-align: right;">$%s</td></tr>
			<tr><td>Shipping</td><td style="text-align: right;">$%s</td></tr>
			<tr><td>Tax</td><td style="text-align: right;">$%s</td></tr>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">$%s</span>
		</div>`,
		rows.String(),
		formatMoney(s.Subtotal),
		formatMoney(s.ShippingCost),
		formatMoney(s.Tax),
		formatMoney(s.Total),
	)

	return fmt.Sprintf(layout, "Thank you for your order", html.EscapeString(s.OrderNumber), content)
}

func BuildStatusUpdateBody(u StatusUpdate) string {
	var notes string
	if u.Notes != "" {
		notes = fmt.Sprintf(`<p style="white-space: pre-line; color: #666;">%s</p>`, html.EscapeString(u.Notes))
	}
	content := fmt.Sprintf(`<p style="margin-top: 0;">Your order has moved from <strong>%s</strong> to <strong>%s</strong>.</p>
		%s
		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Order total</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">$%s</span>
		</div>`,
		statusLabel(u.Previous),
		statusLabel(u.Current),
		notes,
		formatMoney(u.Total),
	)
	return fmt.Sprintf(layout, "Your order has been updated", html.EscapeString(u.OrderNumber), content)
}

func statusLabel(status string) string {
	if status == "" {
		return ""
	}
	lower := strings.ToLower(status)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// formatMoney renders two decimal places with comma thousands separators.
func formatMoney(d decimal.Decimal) string {
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")

	var groups []string
	if head := len(whole) % 3; head > 0 {
		groups = append(groups, whole[:head])
		whole = whole[head:]
	}
	for ; len(whole) > 0; whole = whole[3:] {
		groups = append(groups, whole[:3])
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + strings.Join(groups, ",") + "." + frac
}
