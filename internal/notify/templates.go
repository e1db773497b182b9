package notify

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type Kind string

const (
	KindPaymentReceived Kind = "payment_received"
	KindTicket          Kind = "ticket"
	KindRejected        Kind = "rejected"
)

// View is the data every template renders from.
type View struct {
	BuyerName     string
	EventTitle    string
	EventLocation string
	EventDate     string
	TransactionID string
	TicketID      string
	TotalAmount   string
	Reason        string
	Items         []ViewItem
}

type ViewItem struct {
	Name     string
	Quantity int
	Subtotal string
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[Kind]emailTemplate{
	KindPaymentReceived: mustTemplate(
		"Payment proof received for {{.EventTitle}}",
		`# Payment proof received

Hi {{.BuyerName}},

We received your payment proof for **{{.EventTitle}}**. An admin will review it within 72 hours.

| Ticket | Qty | Subtotal |
|---|---|---|
{{range .Items}}| {{.Name}} | {{.Quantity}} | {{.Subtotal}} |
{{end}}
**Total:** {{.TotalAmount}}

Transaction: `+"`{{.TransactionID}}`"+`
`),
	KindTicket: mustTemplate(
		"Your ticket for {{.EventTitle}}",
		`# Your ticket is confirmed

Hi {{.BuyerName}},

Your payment for **{{.EventTitle}}** has been confirmed.

- Ticket ID: **{{.TicketID}}**
- Date: {{.EventDate}}
- Location: {{.EventLocation}}

| Ticket | Qty | Subtotal |
|---|---|---|
{{range .Items}}| {{.Name}} | {{.Quantity}} | {{.Subtotal}} |
{{end}}
Show the attached QR code at the entrance.
`),
	KindRejected: mustTemplate(
		"Payment for {{.EventTitle}} was rejected",
		`# Payment rejected

Hi {{.BuyerName}},

Your payment proof for **{{.EventTitle}}** was rejected.

> {{.Reason}}

Transaction: `+"`{{.TransactionID}}`"+`

If you believe this is a mistake, reply to this email.
`),
}

func mustTemplate(subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Render fills the markdown template for kind and converts it to HTML.
func Render(kind Kind, v View) (Rendered, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return Rendered{}, errors.Newf("no template for %s", kind)
	}
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, v); err != nil {
		return Rendered{}, errors.Wrap(err, "render subject")
	}
	if err := tmpl.body.Execute(&body, v); err != nil {
		return Rendered{}, errors.Wrap(err, "render body")
	}
	var out bytes.Buffer
	if err := markdown.Convert(body.Bytes(), &out); err != nil {
		return Rendered{}, errors.Wrap(err, "markdown")
	}
	return Rendered{
		Subject: strings.TrimSpace(subject.String()),
		Text:    body.String(),
		HTML:    out.String(),
	}, nil
}
