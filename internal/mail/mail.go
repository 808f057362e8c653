// Package mail delivers activation and password-reset links.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"account_service/internal/config"

	gomail "github.com/wneessen/go-mail"
)

type Sender interface {
	SendActivation(ctx context.Context, to, link string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

var linkTemplate = template.Must(template.New("link").Parse(
	`<b>{{.Intro}}</b>
<a href="{{.Link}}">{{.Link}}</a>
`))

type message struct {
	Subject string
	Intro   string
	Link    string
}

func activationMessage(link string) message {
	return message{
		Subject: "Validate your email",
		Intro:   "Please click on the following link, or paste this into your browser to complete the process: ",
		Link:    link,
	}
}

func resetMessage(link string) message {
	return message{
		Subject: "Reestablece tu contraseña. ",
		Intro:   "Haz clic en el siguiente enlace para reestablecer tu contraseña: ",
		Link:    link,
	}
}

func (m message) render() (string, error) {
	var buf bytes.Buffer
	if err := linkTemplate.Execute(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

type SMTPSender struct {
	dialer dialer
	from   string
}

func NewSMTPSender(cfg config.Mail) (*SMTPSender, error) {
	const op = "mail.NewSMTPSender"

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SMTPSender{
		dialer: client,
		from:   cfg.From,
	}, nil
}

func (s *SMTPSender) SendActivation(ctx context.Context, to, link string) error {
	return s.send(ctx, "mail.SendActivation", to, activationMessage(link))
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, link string) error {
	return s.send(ctx, "mail.SendPasswordReset", to, resetMessage(link))
}

func (s *SMTPSender) send(ctx context.Context, op, to string, msg message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := msg.render()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("%s: from: %w", op, err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("%s: to: %w", op, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, body)

	if err := s.dialer.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LogSender writes links to the log instead of mailing them. It is used
// when no SMTP host is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log.With(slog.String("component", "mail"))}
}

func (s *LogSender) SendActivation(ctx context.Context, to, link string) error {
	s.log.InfoContext(ctx, "activation link", slog.String("to", to), slog.String("link", link))
	return nil
}

func (s *LogSender) SendPasswordReset(ctx context.Context, to, link string) error {
	s.log.InfoContext(ctx, "password reset link", slog.String("to", to), slog.String("link", link))
	return nil
}
