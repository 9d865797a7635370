package notify

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/pkg/errors"
	gomail "github.com/wneessen/go-mail"
)

type Mail struct {
	PeId    int
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

type OutboxStore interface {
	CreateEmailOutbox(ctx context.Context, e *models.EmailOutbox) error
}

// OutboxMailer queues mails in msg_email_outbox. The row is written with the
// caller's context, so it commits or rolls back with the surrounding
// transaction; the outbox dispatcher delivers it later.
type OutboxMailer struct {
	St OutboxStore
}

func (m OutboxMailer) Send(ctx context.Context, mail Mail) error {
	now := time.Now().UTC()
	return m.St.CreateEmailOutbox(ctx, &models.EmailOutbox{
		PeId:          mail.PeId,
		Recipient:     mail.To,
		Subject:       mail.Subject,
		Body:          mail.Body,
		Status:        models.OutboxStatusPending,
		NextAttemptAt: &now,
	})
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

func NewSMTPMailer(s *config.Settings) *SMTPMailer {
	return &SMTPMailer{
		Host:     s.SMTPHost,
		Port:     s.SMTPPort,
		Username: s.SMTPUsername,
		Password: s.SMTPPassword,
		From:     s.MailSender,
		Timeout:  30 * time.Second,
	}
}

var ErrMailNotConfigured = errors.New("smtp host not configured")

func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if m.Host == "" {
		return ErrMailNotConfigured
	}
	msg, err := m.message(mail)
	if err != nil {
		return err
	}
	opts := []gomail.Option{gomail.WithTLSPolicy(gomail.TLSOpportunistic)}
	if m.Port > 0 {
		opts = append(opts, gomail.WithPort(m.Port))
	}
	if m.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(m.Timeout))
	}
	if m.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.Username),
			gomail.WithPassword(m.Password),
		)
	}
	client, err := gomail.NewClient(m.Host, opts...)
	if err != nil {
		return errors.Wrap(err, "smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "send mail to %s", mail.To)
	}
	return nil
}

// message builds a plain text mail. Line breaks in the subject are folded
// into spaces; the library encodes non-ASCII headers.
func (m *SMTPMailer) message(mail Mail) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, errors.Wrapf(err, "mail sender %q", m.From)
	}
	if err := msg.To(mail.To); err != nil {
		return nil, errors.Wrapf(err, "mail recipient %q", mail.To)
	}
	msg.Subject(strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(mail.Subject))
	msg.SetBodyString(gomail.TypeTextPlain, mail.Body)
	return msg, nil
}
