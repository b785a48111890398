package domain

import "time"

// EmailMessage is one outbound message. Either TemplateID or content
// (HTMLContent and/or TextContent with Subject) is set.
type EmailMessage struct {
	To          string `json:"to"`
	From        string `json:"from,omitempty"`
	Subject     string `json:"subject,omitempty"`
	HTMLContent string `json:"htmlContent,omitempty"`
	TextContent string `json:"textContent,omitempty"`

	TemplateID   string `json:"templateId,omitempty"`
	TemplateData any    `json:"templateData,omitempty"`

	// Tags travel with the message and come back on delivery events.
	Tags map[string]string `json:"tags,omitempty"`
}

// Templated reports whether the message is rendered by the sending
// service from a stored template.
func (m *EmailMessage) Templated() bool {
	return m.TemplateID != ""
}

// SendResult is returned by a sender after the message was accepted.
type SendResult struct {
	MessageID string    `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}
