// Package email sends analysis notifications to the SOC team over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/linnemanlabs/verdict/internal/analysis"
)

// Config holds SMTP delivery settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Notifier sends analysis results by email.
type Notifier struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates an email notifier. If no recipients are configured, Send is a
// no-op.
func New(cfg Config) *Notifier {
	return &Notifier{cfg: cfg, send: smtp.SendMail}
}

// Name identifies this channel in routing configuration.
func (n *Notifier) Name() string { return "email" }

// Send delivers the analysis result to the configured recipients.
func (n *Notifier) Send(ctx context.Context, result *analysis.Complete) error {
	if len(n.cfg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[%s] Security alert %s", strings.ToUpper(result.Verdict), result.AlertID)
	msg := buildMessage(n.cfg.From, n.cfg.To, subject, result)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, auth, n.cfg.From, n.cfg.To, msg); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject string, r *analysis.Complete) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Alert ID: %s\r\n", r.AlertID)
	fmt.Fprintf(&b, "Verdict: %s (%.1f%% confidence)\r\n", r.Verdict, r.Confidence*100)
	fmt.Fprintf(&b, "Recommended action: %s\r\n\r\n", r.Action)
	fmt.Fprintf(&b, "%s\r\n", r.Explanation)

	if r.Attribution != nil && len(r.Attribution.Top) > 0 {
		b.WriteString("\r\nTop contributing factors:\r\n")
		for i, f := range r.Attribution.Top {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "%d. %s (%.1f%%, %s)\r\n", i+1, f.HumanName, f.Contribution, f.Direction)
		}
	}

	return []byte(b.String())
}
