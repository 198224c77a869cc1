package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/tastebook/tastebook-api/internal/logging"
)

// Service sends notification emails over SMTP.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	frontendURL  string
	logger       *logging.Logger
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, frontendURL string, logger *logging.Logger) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    smtpUser,
		frontendURL:  frontendURL,
		logger:       logger,
	}
}

var sharedTmpl = template.Must(template.New("shared").Parse(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2>{{.OwnerName}} shared a recipe with you</h2>
  <p><strong>{{.RecipeName}}</strong> is now in your shared recipes.</p>
  <p><a href="{{.Link}}">Open it in Tastebook</a></p>
</body>
</html>
`))

// SendRecipeShared emails a principal that a recipe was shared with them.
// Designed to be called in a goroutine; the caller logs failures.
func (s *Service) SendRecipeShared(ctx context.Context, toEmail, recipeName, ownerName string) error {
	if s.smtpHost == "" {
		// Email is optional; without SMTP config sends are dropped.
		s.logger.Debug("smtp not configured, skipping share notification", "email", toEmail)
		return nil
	}

	var body bytes.Buffer
	err := sharedTmpl.Execute(&body, map[string]string{
		"OwnerName":  ownerName,
		"RecipeName": recipeName,
		"Link":       fmt.Sprintf("%s/shared", s.frontendURL),
	})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	subject := fmt.Sprintf("%s shared %q with you", ownerName, recipeName)
	if err := s.sendEmail(toEmail, subject, body.String()); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("share notification sent", "email", toEmail)
	return nil
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg)
}
