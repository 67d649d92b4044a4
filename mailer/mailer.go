// Package mailer sends the periodic digest of device exception reports.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/wneessen/go-mail"

	"clinicore/config"
	"clinicore/store"
)

const digestBatch = 200

var digestTmpl = template.Must(template.New("digest").Parse(`<h3>Device exception digest</h3>
<p>{{len .}} new exception(s) since the last digest.</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Time</th><th>Country</th><th>Version</th><th>Device</th><th>Message</th></tr>
{{range .}}<tr>
<td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td>
<td>{{.Country}}</td>
<td>{{.Version}}</td>
<td>{{.DeviceModel}}</td>
<td>{{.Message}}</td>
</tr>{{end}}
</table>`))

// Mailer batches unmailed exceptions into one message per tick.
type Mailer struct {
	db   *store.DB
	cfg  *config.MailConfig
	cron *cron.Cron
}

func New(db *store.DB, cfg *config.MailConfig) *Mailer {
	return &Mailer{db: db, cfg: cfg, cron: cron.New()}
}

// Start schedules the digest. An unparseable schedule is a startup fault.
func (m *Mailer) Start() error {
	if len(m.cfg.Receivers) == 0 {
		log.Printf("mailer: no receivers configured, digest disabled")
		return nil
	}
	if _, err := m.cron.AddFunc(m.cfg.Schedule, m.tick); err != nil {
		return fmt.Errorf("mailer schedule %q: %w", m.cfg.Schedule, err)
	}
	m.cron.Start()
	return nil
}

func (m *Mailer) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Mailer) tick() {
	if err := m.SendDigest(); err != nil {
		log.Printf("mailer: digest: %v", err)
	}
}

// SendDigest mails the pending exceptions and marks them on success.
// Nothing pending means nothing sent.
func (m *Mailer) SendDigest() error {
	exceptions, err := m.db.ListUnmailedExceptions(digestBatch)
	if err != nil {
		return fmt.Errorf("list exceptions: %w", err)
	}
	if len(exceptions) == 0 {
		return nil
	}

	body, err := renderDigest(exceptions)
	if err != nil {
		return err
	}
	if err := m.send(fmt.Sprintf("Device exceptions: %d new", len(exceptions)), body); err != nil {
		return err
	}

	ids := make([]int64, len(exceptions))
	for i, e := range exceptions {
		ids[i] = e.ID
	}
	if err := m.db.MarkExceptionsMailed(ids); err != nil {
		return fmt.Errorf("mark mailed: %w", err)
	}
	log.Printf("mailer: digest sent with %d exception(s)", len(exceptions))
	return nil
}

func renderDigest(exceptions []*store.AppException) (string, error) {
	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, exceptions); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

func (m *Mailer) send(subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.cfg.Receivers...); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	return client.DialAndSend(msg)
}
