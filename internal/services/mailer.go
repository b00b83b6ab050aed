package services

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/powderplan/backend/internal/config"
	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/pkg/logger"
	"github.com/wneessen/go-mail"
)

// Mailer sends invitation emails. Delivery is strictly best-effort:
// failures are logged and never fail the request that triggered them.
type Mailer struct {
	cfg         config.SMTPConfig
	frontendURL string
}

func NewMailer(cfg config.SMTPConfig, frontendURL string) *Mailer {
	return &Mailer{cfg: cfg, frontendURL: frontendURL}
}

type invitationEmail struct {
	InviterName      string
	GroupName        string
	GroupDescription string
	CheckInDate      string
	CheckOutDate     string
	InvitationURL    string
	ExpiresAt        string
	PersonalMessage  string
}

var invitationText = template.Must(template.New("invitation").Parse(
	`Hi,

{{.InviterName}} invited you to join "{{.GroupName}}" on Ski Trip Planner.
{{if .GroupDescription}}
{{.GroupDescription}}
{{end}}
Trip dates: {{.CheckInDate}} to {{.CheckOutDate}}
{{if .PersonalMessage}}
Message from {{.InviterName}}: {{.PersonalMessage}}
{{end}}
Accept or decline here: {{.InvitationURL}}

This invitation expires on {{.ExpiresAt}}.
`))

var invitationHTML = template.Must(template.New("invitation_html").Parse(
	`<html><body style="font-family:sans-serif">
<h2>You're invited to join {{.GroupName}}!</h2>
<p>{{.InviterName}} invited you to plan a ski trip together.</p>
{{if .GroupDescription}}<p>{{.GroupDescription}}</p>{{end}}
<p><strong>Trip dates:</strong> {{.CheckInDate}} &ndash; {{.CheckOutDate}}</p>
{{if .PersonalMessage}}<blockquote>{{.PersonalMessage}}</blockquote>{{end}}
<p><a href="{{.InvitationURL}}">View invitation</a></p>
<p style="color:#888">This invitation expires on {{.ExpiresAt}}.</p>
</body></html>`))

// SendInvitation delivers the invitation email synchronously and
// reports success. Callers that must not block run it in a goroutine.
func (m *Mailer) SendInvitation(invitation *models.Invitation, group *models.Group, inviter *models.User) bool {
	if !m.cfg.Enabled() {
		logger.Warn("invitation_email_skipped", map[string]interface{}{
			"invitation_id": invitation.ID.String(),
			"reason":        "smtp not configured",
		})
		return false
	}

	data := invitationEmail{
		InviterName:   inviter.FullName,
		GroupName:     group.Name,
		CheckInDate:   group.CheckInDate.Format("Mon, 2 Jan 2006"),
		CheckOutDate:  group.CheckOutDate.Format("Mon, 2 Jan 2006"),
		InvitationURL: fmt.Sprintf("%s/invitations/%s", m.frontendURL, invitation.ID),
		ExpiresAt:     invitation.ExpiresAt.Format(time.RFC1123),
	}
	if group.Description != nil {
		data.GroupDescription = *group.Description
	}
	if invitation.Message != nil {
		data.PersonalMessage = *invitation.Message
	}

	var text, html bytes.Buffer
	if err := invitationText.Execute(&text, data); err != nil {
		logger.Error("invitation_email_template_failed", err, nil)
		return false
	}
	if err := invitationHTML.Execute(&html, data); err != nil {
		logger.Error("invitation_email_template_failed", err, nil)
		return false
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.FromAddress); err != nil {
		logger.Error("invitation_email_from_invalid", err, nil)
		return false
	}
	if err := msg.To(invitation.InvitedEmail); err != nil {
		logger.Error("invitation_email_recipient_invalid", err, map[string]interface{}{
			"invitation_id": invitation.ID.String(),
		})
		return false
	}
	msg.Subject(fmt.Sprintf("You're invited to join %s!", group.Name))
	msg.SetBodyString(mail.TypeTextPlain, text.String())
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		logger.Error("invitation_email_client_failed", err, nil)
		return false
	}

	if err := client.DialAndSend(msg); err != nil {
		logger.Error("invitation_email_send_failed", err, map[string]interface{}{
			"invitation_id": invitation.ID.String(),
			"group_id":      group.ID.String(),
		})
		return false
	}

	logger.Info("invitation_email_sent", map[string]interface{}{
		"invitation_id": invitation.ID.String(),
		"group_id":      group.ID.String(),
	})
	return true
}
