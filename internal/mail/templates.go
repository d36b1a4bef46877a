// AngelaMos | 2026
// templates.go

package mail

import (
	"html/template"
)

type OrderLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type OrderConfirmation struct {
	OrderID      string      `json:"order_id"`
	TrackingCode string      `json:"tracking_code"`
	CustomerName string      `json:"customer_name"`
	Email        string      `json:"email"`
	Address      string      `json:"address"`
	TotalAmount  string      `json:"total_amount"`
	Items        []OrderLine `json:"items"`
}

var verificationTmpl = template.Must(template.New("verification").Parse(`
<h2>Welcome to {{.Store}}</h2>
<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Confirm your email address to start ordering:</p>
<p><a href="{{.Link}}">Confirm email</a></p>
<p>If you did not create an account you can ignore this message.</p>
`))

var resetCodeTmpl = template.Must(template.New("reset_code").Parse(`
<h2>{{.Store}} password reset</h2>
<p>Your reset code is:</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>Enter it together with the phone number on your account. The code expires shortly.</p>
`))

var orderTmpl = template.Must(template.New("order_confirmation").Parse(`
<h2>Thank you for your order, {{.Order.CustomerName}}</h2>
<p>Tracking code: <strong>{{.Order.TrackingCode}}</strong></p>
<table>
<tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{.Price}}</td></tr>
{{end}}</table>
<p>Total: <strong>{{.Order.TotalAmount}}</strong>, paid cash on delivery.</p>
<p>Delivering to: {{.Order.Address}}</p>
<p>{{.Store}}</p>
`))

var adminTmpl = template.Must(template.New("admin_notification").Parse(`
<h3>{{.Title}}</h3>
<p>{{.Message}}</p>
`))
