// Package mail renders and delivers participant emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	texttemplate "text/template"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Template string

const (
	ParticipantInvite Template = "participantInvite"
	ResetPassword     Template = "resetPassword"
)

// Data fills a template. Code is the one-time code; Group is the group name.
type Data struct {
	Code  string
	Group string
	Name  string
}

type Mailer interface {
	Send(ctx context.Context, to string, tmpl Template, data Data) error
}

var subjects = map[Template]string{
	ParticipantInvite: "You're invited to join {{.Group}}",
	ResetPassword:     "Your password reset code",
}

var bodies = template.Must(template.New("mail").Parse(`
{{define "participantInvite"}}<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>You have been invited to join <strong>{{.Group}}</strong>.</p>
<p>Your invite code is <strong style="letter-spacing:2px">{{.Code}}</strong>.</p>
<p>Open the app, choose "I have an invite" and enter the code with this email address.</p>{{end}}
{{define "resetPassword"}}<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>Use <strong style="letter-spacing:2px">{{.Code}}</strong> to reset your password.</p>
<p>If you did not ask for this you can ignore this email.</p>{{end}}
`))

// Render returns the subject and HTML body for tmpl.
func Render(tmpl Template, data Data) (subject, body string, err error) {
	subjectTmpl, ok := subjects[tmpl]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", tmpl)
	}
	var sb bytes.Buffer
	if err := texttemplate.Must(texttemplate.New("subject").Parse(subjectTmpl)).Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	var bb bytes.Buffer
	if err := bodies.ExecuteTemplate(&bb, string(tmpl), data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", tmpl, err)
	}
	return sb.String(), bb.String(), nil
}

// SMTPMailer sends through an SMTP relay with STARTTLS when offered.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

func NewSMTPMailer(host string, port int, username, password, from string, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: logger,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to string, tmpl Template, data Data) error {
	subject, body, err := Render(tmpl, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.from, "Carepath"))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	// gomail has no context support; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s mail: %w", tmpl, err)
	}
	m.logger.Info("mail sent", zap.String("template", string(tmpl)), zap.String("to", to))
	return nil
}

// LogMailer logs instead of sending. Used when no SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to string, tmpl Template, data Data) error {
	subject, _, err := Render(tmpl, data)
	if err != nil {
		return err
	}
	m.logger.Info("mail not sent, SMTP disabled",
		zap.String("template", string(tmpl)),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("code", data.Code),
	)
	return nil
}

// Message is one captured send.
type Message struct {
	To       string
	Template Template
	Data     Data
}

// Recorder captures sends in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (r *Recorder) Send(_ context.Context, to string, tmpl Template, data Data) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Message{To: to, Template: tmpl, Data: data})
	return nil
}

func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// Last returns the most recent message to addr.
func (r *Recorder) Last(addr string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].To == addr {
			return r.sent[i], true
		}
	}
	return Message{}, false
}
