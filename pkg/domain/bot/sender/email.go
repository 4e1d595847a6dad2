package sender

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

var shopEmail = template.Must(template.New("booking").Parse(`<h2>New Appointment Booking</h2>
<p><strong>Name:</strong> {{.Customer.Name}}</p>
<p><strong>Phone:</strong> {{.Customer.Phone}}</p>
<p><strong>Email:</strong> {{.Customer.Email}}</p>
<p><strong>Service:</strong> {{.Service}}</p>
<p><strong>Barber:</strong> {{.StaffOrAny}}</p>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Time:</strong> {{.Time}}</p>
{{- if .Customer.Notes}}
<p><strong>Notes:</strong> {{.Customer.Notes}}</p>
{{- end}}
<hr>
<p>Reference: {{.ConfirmationID}}</p>
`))

// Email notifies the shop's inbox through SendGrid.
type Email struct {
	client mailClient
	from   *mail.Email
	to     *mail.Email
	logger zerolog.Logger
}

var _ Notifier = (*Email)(nil)

func NewEmail(apiKey, from, to string, logger zerolog.Logger) *Email {
	return newEmail(sendgrid.NewSendClient(apiKey), from, to, logger)
}

func newEmail(client mailClient, from, to string, logger zerolog.Logger) *Email {
	if from == "" {
		from = to
	}
	return &Email{
		client: client,
		from:   mail.NewEmail("Bookings", from),
		to:     mail.NewEmail("", to),
		logger: logger.With().Str("component", "email_sender").Logger(),
	}
}

func (e *Email) Notify(ctx context.Context, n Notice) error {
	var body bytes.Buffer
	if err := shopEmail.Execute(&body, n); err != nil {
		return errs.New("failed to render email").Wrap(err)
	}
	subject := fmt.Sprintf("New Booking: %s - %s", n.Customer.Name, n.Service)
	plain := fmt.Sprintf("%s booked %s with %s on %s at %s. Phone: %s",
		n.Customer.Name, n.Service, n.StaffOrAny(), n.Date, n.Time, n.Customer.Phone)

	msg := mail.NewSingleEmail(e.from, subject, e.to, plain, body.String())
	resp, err := e.client.SendWithContext(ctx, msg)
	if err != nil {
		return errs.New("sendgrid request failed").Kind(errs.KindTransport).Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.New("sendgrid rejected email").
			Kind(errs.KindTransport).
			Arg("status", resp.StatusCode).
			Arg("body", resp.Body)
	}
	e.logger.Debug().Str("booking_id", n.ConfirmationID).Int("status", resp.StatusCode).Msg("email sent")
	return nil
}
