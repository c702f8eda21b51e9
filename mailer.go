package identity

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"

	goerrors "github.com/goliatone/go-errors"
)

//go:embed data/email
var emailTemplatesFS embed.FS

var emailSubjects = map[string]string{
	ActivationEmailTemplate: "Activate your account",
}

// SMTPMailer delivers templated mail over implicit TLS. Delivery is
// best-effort by design: callers on the registration path run it in the
// background and only log failures.
type SMTPMailer struct {
	host      string
	port      string
	username  string
	password  string
	from      string
	templates *template.Template
	logger    Logger
}

// NewSMTPMailer loads the embedded templates and returns a ready sender.
func NewSMTPMailer(host, port, username, password, from string) (*SMTPMailer, error) {
	templates, err := template.ParseFS(emailTemplatesFS, "data/email/*.html")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse email templates")
	}

	if from == "" {
		from = username
	}

	return &SMTPMailer{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		from:      from,
		templates: templates,
		logger:    defLogger{},
	}, nil
}

func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Send renders the named template with the given context and delivers it.
func (m *SMTPMailer) Send(ctx context.Context, tmpl, recipient string, data map[string]any) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during mail delivery")
	default:
	}

	body, err := m.render(tmpl, data)
	if err != nil {
		return err
	}

	subject := emailSubjects[tmpl]
	if subject == "" {
		subject = tmpl
	}

	msg := []byte(
		fmt.Sprintf("From: %s\r\n", m.from) +
			fmt.Sprintf("To: %s\r\n", recipient) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	if err := m.deliver(recipient, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
			WithTextCode(TextCodeDelivery)
	}

	return nil
}

func (m *SMTPMailer) render(tmpl string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, tmpl+".html", data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{"template": tmpl})
	}
	return buf.String(), nil
}

func (m *SMTPMailer) deliver(recipient string, msg []byte) error {
	serverAddr := m.host + ":" + m.port

	// Implicit TLS for port 465
	tlsConfig := &tls.Config{
		ServerName: m.host,
	}

	conn, err := tls.Dial("tcp", serverAddr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return err
	}

	if err := client.Mail(m.from); err != nil {
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}

	return w.Close()
}

// LogMailer prints notifications instead of sending them. It stands in for
// SMTP during development and tests.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(ctx context.Context, tmpl, recipient string, data map[string]any) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}

	logger.Info("====== SENDING EMAIL NOTIFICATION =======")
	logger.Info("template: %s to: %s context: %v", tmpl, recipient, data)
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = LogMailer{}
)
