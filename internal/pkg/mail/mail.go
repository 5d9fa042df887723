package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"
)

// Config holds SMTP settings (matches AppConfig.Mail).
type Config struct {
	Enable  bool
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	ReplyTo string
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender sends emails over SMTP.
type Sender struct {
	cfg  Config
	send sendFunc
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail}
}

// Enabled reports whether mail delivery is configured.
func (s *Sender) Enabled() bool { return s.cfg.Enable }

// Send dispatches an email. It does nothing when mail is disabled.
func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enable {
		return nil
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}
	host := s.cfg.Host
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	if s.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", s.cfg.ReplyTo))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	}
	return s.send(addr, auth, from, msg.To, body.Bytes())
}

const commentNotifyTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="font-family:ui-sans-serif,system-ui,sans-serif;margin:0 auto;padding:.5rem">
  <p>Hi {{.Username}},</p>
  <p><strong>{{.Commenter}}</strong> commented on your post
  {{if .MediaURL}}<a href="{{.MediaURL}}">{{.MediaTitle}}</a>{{else}}{{.MediaTitle}}{{end}}
  at {{.SiteName}}:</p>
  <blockquote style="background-color:rgb(243,244,246);border-radius:.75rem;padding:.5rem 1rem">{{.Content}}</blockquote>
  <p style="font-size:12px;color:rgb(107,114,128)">You get this mail because you subscribed to comments on this post.</p>
</body>
</html>`

// CommentNotifyData is the data for comment notification emails.
type CommentNotifyData struct {
	Username   string
	Commenter  string
	MediaTitle string
	MediaURL   string
	Content    string
	SiteName   string
}

// CommentNotification renders the mail telling a subscriber about a comment.
func CommentNotification(to string, data CommentNotifyData) (Message, error) {
	if data.SiteName == "" {
		data.SiteName = "GNU MediaGoblin"
	}
	html, err := renderTemplate(commentNotifyTpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("%s - %s commented on your post", data.SiteName, data.Commenter),
		HTML:    html,
	}, nil
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
