package activity

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// CodeSubject is the subject line of the code email.
const CodeSubject = "Your OTP for POS System"

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// CodeMessage renders the email that carries code to email.
func CodeMessage(email, code string, ttl time.Duration) Message {
	minutes := int(ttl / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return Message{
		To:      email,
		Subject: CodeSubject,
		HTML: fmt.Sprintf(`<html>
<body>
<p>Your OTP is: <strong>%s</strong></p>
<p>This OTP is valid for %d minutes.</p>
<p>If you didn't request this OTP, please ignore this email.</p>
</body>
</html>`, html.EscapeString(code), minutes),
		Text: fmt.Sprintf("Your OTP is: %s\nThis OTP is valid for %d minutes.\nIf you didn't request this OTP, please ignore this email.\n", code, minutes),
	}
}

// TLSMode selects the transport security of an SMTP connection.
type TLSMode string

// TLS modes.
const (
	TLSStartTLS TLSMode = "starttls"
	TLSImplicit TLSMode = "ssl"
	TLSNone     TLSMode = "none"
)

// SMTPConfig describes an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      TLSMode
	Timeout  time.Duration
}

// SMTPPreset returns the relay settings of a named provider. Unknown names
// return false.
func SMTPPreset(provider string) (SMTPConfig, bool) {
	switch provider {
	case "mailtrap":
		return SMTPConfig{Host: "sandbox.smtp.mailtrap.io", Port: 2525, TLS: TLSStartTLS}, true
	case "bizflycloud":
		return SMTPConfig{Host: "smtp.bizflycloud.vn", Port: 587, TLS: TLSStartTLS}, true
	default:
		return SMTPConfig{}, false
	}
}

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("activity: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("activity: smtp sender is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg}, nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
	}
	switch m.cfg.TLS {
	case TLSImplicit:
		opts = append(opts, mail.WithSSL())
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, opts...)
}

// Send implements Mailer. Permanent SMTP replies (5xx) are rejections;
// everything else is transient.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	em := mail.NewMsg()
	if err := em.From(m.cfg.From); err != nil {
		return Invalid("smtp", fmt.Errorf("sender: %w", err))
	}
	if err := em.To(msg.To); err != nil {
		return Invalid("smtp", fmt.Errorf("recipient: %w", err))
	}
	em.Subject(msg.Subject)
	em.SetMessageID()
	em.SetDate()
	em.SetBodyString(mail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		em.AddAlternativeString(mail.TypeTextPlain, msg.Text)
	}

	c, err := m.client()
	if err != nil {
		return Invalid("smtp", err)
	}
	if err := c.DialAndSendWithContext(ctx, em); err != nil {
		return classifySMTP(err)
	}
	return nil
}

func classifySMTP(err error) error {
	var se *mail.SendError
	if errors.As(err, &se) && !se.IsTemp() && se.ErrorCode() >= 500 {
		return Reject("smtp", err)
	}
	return Transient("smtp", err)
}

// LogMailer writes messages to a logger instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
