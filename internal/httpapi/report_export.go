package httpapi

import (
	"bytes"
	"encoding/csv"
	"html/template"
	"strconv"

	"posledger/internal/domain"
)

// reportToCSV flattens a report into section,key,value rows. Product names are
// free text, so rows go through encoding/csv for quoting.
func reportToCSV(report domain.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "start_date", report.StartDate},
		{"summary", "end_date", report.EndDate},
		{"summary", "total_transactions", strconv.FormatInt(report.Summary.TotalTransactions, 10)},
		{"summary", "total_revenue", report.Summary.TotalRevenue.StringFixed(2)},
		{"summary", "total_tax", report.Summary.TotalTax.StringFixed(2)},
		{"summary", "total_discounts", report.Summary.TotalDiscounts.StringFixed(2)},
		{"summary", "average_transaction", report.Summary.AverageTransaction.StringFixed(2)},
	}
	for _, day := range report.DailySales {
		rows = append(rows,
			[]string{"daily", day.Date + "_transactions", strconv.FormatInt(day.Transactions, 10)},
			[]string{"daily", day.Date + "_revenue", day.Revenue.StringFixed(2)},
		)
	}
	for _, product := range report.TopProducts {
		rows = append(rows,
			[]string{"product", product.SKU + "_name", product.Name},
			[]string{"product", product.SKU + "_quantity", strconv.FormatInt(product.TotalQuantity, 10)},
			[]string{"product", product.SKU + "_revenue", product.TotalRevenue.StringFixed(2)},
		)
	}
	for _, payment := range report.PaymentMethods {
		rows = append(rows,
			[]string{"payment", payment.PaymentMethod + "_transactions", strconv.FormatInt(payment.Transactions, 10)},
			[]string{"payment", payment.PaymentMethod + "_revenue", payment.Revenue.StringFixed(2)},
		)
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// All user-controlled fields are auto-escaped by html/template.
var reportHTMLTmpl = template.Must(template.New("sales-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Sales Report {{.StartDate}} - {{.EndDate}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Sales Report {{.StartDate}} - {{.EndDate}}</h2>
  <p>Transactions: {{.Summary.TotalTransactions}}</p>
  <p>Revenue: {{.Summary.TotalRevenue.StringFixed 2}}</p>
  <p>Tax: {{.Summary.TotalTax.StringFixed 2}}</p>
  <p>Discounts: {{.Summary.TotalDiscounts.StringFixed 2}}</p>
  <p>Average transaction: {{.Summary.AverageTransaction.StringFixed 2}}</p>
  <h3>Daily Sales</h3>
  <table>
    <thead><tr><th>Date</th><th>Transactions</th><th>Revenue</th></tr></thead>
    <tbody>
    {{range .DailySales}}<tr><td>{{.Date}}</td><td>{{.Transactions}}</td><td>{{.Revenue.StringFixed 2}}</td></tr>
    {{end}}</tbody>
  </table>
  <h3>Top Products</h3>
  <table>
    <thead><tr><th>SKU</th><th>Name</th><th>Quantity</th><th>Revenue</th></tr></thead>
    <tbody>
    {{range .TopProducts}}<tr><td>{{.SKU}}</td><td>{{.Name}}</td><td>{{.TotalQuantity}}</td><td>{{.TotalRevenue.StringFixed 2}}</td></tr>
    {{end}}</tbody>
  </table>
  <h3>Payment Methods</h3>
  <table>
    <thead><tr><th>Method</th><th>Transactions</th><th>Revenue</th></tr></thead>
    <tbody>
    {{range .PaymentMethods}}<tr><td>{{.PaymentMethod}}</td><td>{{.Transactions}}</td><td>{{.Revenue.StringFixed 2}}</td></tr>
    {{end}}</tbody>
  </table>
</body>
</html>`))

func reportToPrintableHTML(report domain.Report) string {
	var buf bytes.Buffer
	if err := reportHTMLTmpl.Execute(&buf, report); err != nil {
		return "<p>failed to render report</p>"
	}
	return buf.String()
}
