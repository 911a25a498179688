package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-casework"
)

// TemplateRenderer produces document references locally without a remote
// rendering service.
type TemplateRenderer struct{}

// Render returns a reference named after the case and template.
func (TemplateRenderer) Render(_ context.Context, req RenderRequest) (DocumentRef, error) {
	if strings.TrimSpace(req.TemplateID) == "" {
		return DocumentRef{}, fmt.Errorf("template id required")
	}
	return DocumentRef{
		ID:         uuid.NewString(),
		Filename:   fmt.Sprintf("%s-%d-%s.pdf", sanitizeFilename(req.TemplateID), req.CaseID, languageCode(req.Language)),
		TemplateID: req.TemplateID,
		Language:   req.Language,
	}, nil
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// LogSender writes emails and letters to the logger instead of delivering them.
type LogSender struct {
	logger casework.Logger
}

// NewLogSender returns a sender that logs every message.
func NewLogSender(logger casework.Logger) *LogSender {
	return &LogSender{logger: casework.NormalizeLogger(logger)}
}

// SendEmail logs email.
func (s *LogSender) SendEmail(_ context.Context, email Email) (string, error) {
	if strings.TrimSpace(email.To) == "" {
		return "", fmt.Errorf("email address required")
	}
	s.logger.Info("email case=%d template=%s to=%s vars=%d", email.CaseID, email.TemplateID, email.To, len(email.Variables))
	return email.DeliveryID, nil
}

// SendLetter logs letter.
func (s *LogSender) SendLetter(_ context.Context, letter Letter) (string, error) {
	if letter.Address.Empty() {
		return "", fmt.Errorf("postal address required")
	}
	s.logger.Info("letter case=%d to=%s documents=%d", letter.CaseID, letter.Name, len(letter.Documents))
	return letter.DeliveryID, nil
}
