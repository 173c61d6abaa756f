// Package email envía los correos transaccionales del core de seguridad.
// Hoy el único correo es el magic link de login.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htemplate "html/template"
	"net/url"
	ttemplate "text/template"
	"time"
)

var (
	ErrTemplateRender = errors.New("email: template render failed")
	ErrSendFailed     = errors.New("email: send failed")
)

// Sender envía un email ya renderizado.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// MagicLinkMailer renderiza y envía el correo de magic link.
type MagicLinkMailer struct {
	sender  Sender
	baseURL string

	htmlTmpl *htemplate.Template
	textTmpl *ttemplate.Template
}

// NewMagicLinkMailer construye el mailer con los templates embebidos.
func NewMagicLinkMailer(sender Sender, baseURL string) (*MagicLinkMailer, error) {
	ht, err := htemplate.New("magic_link_html").Parse(magicLinkHTML)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	tt, err := ttemplate.New("magic_link_text").Parse(magicLinkText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return &MagicLinkMailer{
		sender:   sender,
		baseURL:  baseURL,
		htmlTmpl: ht,
		textTmpl: tt,
	}, nil
}

type magicLinkVars struct {
	Email string
	Link  string
	TTL   string
}

// SendMagicLink renderiza el link de login y lo envía al destinatario.
func (m *MagicLinkMailer) SendMagicLink(_ context.Context, email, token string, ttl time.Duration) error {
	link := fmt.Sprintf("%s/magic-login?token=%s", m.baseURL, url.QueryEscape(token))
	vars := magicLinkVars{
		Email: email,
		Link:  link,
		TTL:   formatTTL(ttl),
	}

	var html, text bytes.Buffer
	if err := m.htmlTmpl.Execute(&html, vars); err != nil {
		return fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	if err := m.textTmpl.Execute(&text, vars); err != nil {
		return fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	if err := m.sender.Send(email, "Your sign-in link", html.String(), text.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func formatTTL(ttl time.Duration) string {
	if ttl >= time.Hour {
		return fmt.Sprintf("%d hours", int(ttl.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(ttl.Minutes()))
}

const magicLinkHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 480px; margin: 0 auto;">
  <h2>Sign in to CrewGate</h2>
  <p>Hello {{.Email}},</p>
  <p>Click the button below to sign in. This link expires in {{.TTL}} and can be used once.</p>
  <p><a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#0b5fff;color:#fff;text-decoration:none;border-radius:4px;">Sign in</a></p>
  <p>If you did not request this, you can safely ignore this message.</p>
</body>
</html>`

const magicLinkText = `Sign in to CrewGate

Hello {{.Email}},

Open this link to sign in (expires in {{.TTL}}, single use):

{{.Link}}

If you did not request this, ignore this message.`
