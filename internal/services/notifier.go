package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers a one-time code out of band.
type Notifier interface {
	SendCode(ctx context.Context, to *models.User, c *models.OTPChallenge) error
}

func ttlMinutes(purpose models.OTPPurpose) int {
	return int(otpTTL(purpose).Minutes())
}

// ---------------------------------------------------------------------
// SendGrid e-mail
// ---------------------------------------------------------------------

type emailNotifier struct {
	client      *sendgrid.Client
	fromName    string
	fromEmail   string
	sandboxMode bool
}

func NewEmailNotifier(apiKey, fromName, fromEmail string, sandboxMode bool) Notifier {
	return &emailNotifier{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromEmail:   fromEmail,
		sandboxMode: sandboxMode,
	}
}

func (n *emailNotifier) SendCode(_ context.Context, to *models.User, c *models.OTPChallenge) error {
	subject := constants.EmailSubjectLoginCode
	intro := "Use the following code to finish signing in."
	if c.Purpose == models.OTPPurposeUnseal {
		subject = constants.EmailSubjectUnsealCode
		intro = fmt.Sprintf("Use the following code to unseal bid %s.", c.Subject)
	}
	minutes := ttlMinutes(c.Purpose)

	from := mail.NewEmail(n.fromName, n.fromEmail)
	rcpt := mail.NewEmail(to.Username, to.Email)
	plain := fmt.Sprintf("%s\n\nCode: %s\nIt expires in %d minutes.", intro, c.Code, minutes)
	html := fmt.Sprintf(codeEmailHTML, subject, intro, c.Code, minutes)
	msg := mail.NewSingleEmail(from, subject, rcpt, plain, html)

	if n.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}

	resp, err := n.client.Send(msg)
	if err != nil {
		utils.Logger.WithError(err).Errorf("Failed to send code email to user %s via SendGrid", to.ID)
		return fmt.Errorf("%w: failed to send email via sendgrid: %v", utils.ErrExternalServiceFailure, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid returned status %d", utils.ErrExternalServiceFailure, resp.StatusCode)
	}
	return nil
}

const codeEmailHTML = `<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <h2>%s</h2>
    <p>%s</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">%s</p>
    <p>This code expires in %d minutes and can be used once.</p>
  </body>
</html>`

// ---------------------------------------------------------------------
// Twilio SMS
// ---------------------------------------------------------------------

type smsNotifier struct {
	client    *twilio.RestClient
	fromPhone string
}

func NewSMSNotifier(accountSID, authToken, fromPhone string) Notifier {
	return &smsNotifier{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromPhone: fromPhone,
	}
}

// SendCode is a no-op for users without a phone number.
func (n *smsNotifier) SendCode(_ context.Context, to *models.User, c *models.OTPChallenge) error {
	if to.PhoneNumber == nil || *to.PhoneNumber == "" {
		return nil
	}

	body := fmt.Sprintf(constants.SMSBodyLoginCode, c.Code, ttlMinutes(c.Purpose))
	if c.Purpose == models.OTPPurposeUnseal {
		body = fmt.Sprintf(constants.SMSBodyUnsealCode, c.Subject, c.Code, ttlMinutes(c.Purpose))
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(*to.PhoneNumber)
	params.SetFrom(n.fromPhone)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to send code SMS to user %s via Twilio", to.ID)
		return fmt.Errorf("%w: failed to send sms via twilio: %v", utils.ErrExternalServiceFailure, err)
	}
	return nil
}

// ---------------------------------------------------------------------
// Log sink (development)
// ---------------------------------------------------------------------

type logNotifier struct{}

// NewLogNotifier writes codes to the application log. Only for local
// development where no provider is configured.
func NewLogNotifier() Notifier { return logNotifier{} }

func (logNotifier) SendCode(_ context.Context, to *models.User, c *models.OTPChallenge) error {
	utils.Logger.WithField("user_id", to.ID).
		WithField("purpose", c.Purpose).
		WithField("subject", c.Subject).
		Infof("One-time code: %s", c.Code)
	return nil
}

// ---------------------------------------------------------------------
// Fan-out
// ---------------------------------------------------------------------

type multiNotifier []Notifier

// NewMultiNotifier delivers through every channel. Delivery succeeds when at
// least one channel does.
func NewMultiNotifier(ns ...Notifier) Notifier {
	return multiNotifier(ns)
}

func (m multiNotifier) SendCode(ctx context.Context, to *models.User, c *models.OTPChallenge) error {
	var errs []error
	for _, n := range m {
		if err := n.SendCode(ctx, to, c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(m) > 0 && len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
