package mailing

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/opentalon/leadgate/internal/store"
)

type SMTPConfig struct {
	Addr     string // host:port, e.g. smtp.gmail.com:587
	Username string
	Password string
	From     string
	To       []string
}

// SMTPNotifier mails a summary of each lead to the sales inbox.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (n *SMTPNotifier) Configured() bool {
	return n.cfg.Addr != "" && n.cfg.From != "" && len(n.cfg.To) > 0
}

var leadTemplate = template.Must(template.New("lead").Parse(`Nuevo lead recibido

Origen:        {{.Channel}}
Nombre:        {{.FullName}}
Empresa:       {{.Company}}
RUC/DNI:       {{.TaxID}}
Teléfono:      {{.Phone}}
Correo:        {{.Email}}
Requerimiento: {{.Requirement}}
Recibido:      {{.SubmittedAt}}
`))

// NotifyLead sends the lead summary. The lead must carry a name, company and email.
func (n *SMTPNotifier) NotifyLead(ctx context.Context, rec store.LeadRecord) error {
	if !n.Configured() {
		return fmt.Errorf("lead notification: smtp not configured")
	}
	for field, v := range map[string]string{"nombre_apellido": rec.FullName, "empresa": rec.Company, "correo": rec.Email} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("lead notification: missing %s", field)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := n.message(rec)
	if err != nil {
		return err
	}
	host, _, err := net.SplitHostPort(n.cfg.Addr)
	if err != nil {
		return fmt.Errorf("lead notification: smtp addr: %w", err)
	}
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}
	if err := n.send(n.cfg.Addr, auth, n.cfg.From, n.cfg.To, msg); err != nil {
		return fmt.Errorf("lead notification: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) message(rec store.LeadRecord) ([]byte, error) {
	if rec.SubmittedAt == "" {
		rec.SubmittedAt = n.now().Format("2006-01-02 15:04:05")
	}
	var body bytes.Buffer
	if err := leadTemplate.Execute(&body, rec); err != nil {
		return nil, fmt.Errorf("lead notification: render: %w", err)
	}
	subject := fmt.Sprintf("Nuevo Lead (%s): %s - %s", rec.Channel, rec.FullName, rec.Company)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
