package sender

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

type smsClient interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMS confirms the booking to the customer's phone through Twilio.
type SMS struct {
	client smsClient
	from   string
	logger zerolog.Logger
}

var _ Notifier = (*SMS)(nil)

func NewSMS(accountSID, authToken, from string, logger zerolog.Logger) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return newSMS(client.Api, from, logger)
}

func newSMS(client smsClient, from string, logger zerolog.Logger) *SMS {
	return &SMS{
		client: client,
		from:   from,
		logger: logger.With().Str("component", "sms_sender").Logger(),
	}
}

// Notify ignores ctx: the Twilio client takes none.
func (s *SMS) Notify(_ context.Context, n Notice) error {
	to := strings.TrimSpace(n.Customer.Phone)
	if to == "" {
		return nil
	}
	if !strings.HasPrefix(to, "+") {
		s.logger.Warn().Str("to", to).Msg("phone is not in E.164 form, delivery may fail")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(smsText(n))

	resp, err := s.client.CreateMessage(params)
	if err != nil {
		return errs.New("failed to send SMS").Kind(errs.KindTransport).Arg("to", to).Wrap(err)
	}
	if resp != nil && resp.Sid != nil {
		s.logger.Debug().Str("sid", *resp.Sid).Msg("sms sent")
	}
	return nil
}

func smsText(n Notice) string {
	name := n.Customer.Name
	if i := strings.IndexByte(name, ' '); i > 0 {
		name = name[:i]
	}
	return fmt.Sprintf("Hi %s, your %s with %s on %s at %s is confirmed. Ref %s",
		name, n.Service, n.StaffOrAny(), n.Date, n.Time, n.ConfirmationID)
}
