package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"time"

	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/metrics"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Kind]string{
	KindWelcome:         "Welcome to LedgerPro - Your License Key",
	KindLicenseKey:      "LedgerPro - Your License Key",
	KindPaymentFailed:   "LedgerPro - Payment Unsuccessful",
	KindEnterpriseSales: "New LedgerPro Enterprise Inquiry",
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders notifications with the embedded HTML templates and delivers
// them over SMTP. smtp.SendMail upgrades with STARTTLS when the server
// offers it.
type Mailer struct {
	cfg       config.SMTPConfig
	templates *template.Template
	send      sendFunc
	logger    *zap.Logger
}

func ValidateSMTPConfig(cfg config.SMTPConfig) error {
	if cfg.Host == "" {
		return errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		return errors.New("smtp port is required")
	}
	if cfg.From == "" && cfg.Username == "" {
		return errors.New("smtp from address is required")
	}
	return nil
}

func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) (*Mailer, error) {
	if err := ValidateSMTPConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid smtp config: %w", err)
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"date": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	return &Mailer{
		cfg:       cfg,
		templates: tmpl,
		send:      smtp.SendMail,
		logger:    logger.Named("Mailer"),
	}, nil
}

func (m *Mailer) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := n.To
	if n.Kind == KindEnterpriseSales && to == "" {
		to = m.cfg.SalesAddress
	}
	if to == "" {
		return fmt.Errorf("no recipient for %s notification", n.Kind)
	}

	subject, ok := subjects[n.Kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	body, err := m.render(n)
	if err != nil {
		return err
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{to}, m.buildMessage(to, subject, body)); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
		m.logger.Error("Failed to send email",
			zap.String("kind", string(n.Kind)),
			zap.String("to", to),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "sent").Inc()
	m.logger.Info("Email sent", zap.String("kind", string(n.Kind)), zap.String("to", to))
	return nil
}

func (m *Mailer) render(n Notification) ([]byte, error) {
	var body bytes.Buffer
	name := string(n.Kind) + ".html"
	if err := m.templates.ExecuteTemplate(&body, name, n); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return body.Bytes(), nil
}

func (m *Mailer) buildMessage(to, subject string, htmlBody []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.Write(htmlBody)
	return buf.Bytes()
}
