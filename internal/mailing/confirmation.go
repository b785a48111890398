package mailing

const confirmationSubject = "Confirm your subscription"

const confirmationHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Confirmation</title>
</head>
<body>
	<p>Please confirm the subscription of {{ email | mask_email | escape }} to {{ listName | default: "this mailing list" | escape }} by clicking the link:</p>
	<p><a href="{{ apiUrl }}/subscriber/confirm?t={{ subscriberId | urlencode }}" rel="noreferrer noopener">Confirm subscription</a></p>
</body>
</html>`

const confirmationText = `
Please confirm the subscription of {{ email | mask_email }} to {{ listName | default: "this mailing list" }} by clicking the link:
{{ apiUrl }}/subscriber/confirm?t={{ subscriberId | urlencode }}
`

// Content is a rendered subject with html and text bodies.
type Content struct {
	Subject string
	HTML    string
	Text    string
}

// Confirmation is what the built-in double opt-in message is rendered from.
type Confirmation struct {
	// APIURL is the public API base, without a trailing slash.
	APIURL       string
	SubscriberID string
	Email        string
	// ListName may be empty.
	ListName string
}

// ConfirmationContent renders the built-in double opt-in message.
func (ts *TemplateService) ConfirmationContent(c Confirmation) (*Content, error) {
	bindings := map[string]any{
		"apiUrl":       c.APIURL,
		"subscriberId": c.SubscriberID,
		"email":        c.Email,
		"listName":     c.ListName,
	}
	htmlBody, err := ts.Render("builtin:confirmation:html", confirmationHTML, bindings)
	if err != nil {
		return nil, err
	}
	textBody, err := ts.Render("builtin:confirmation:text", confirmationText, bindings)
	if err != nil {
		return nil, err
	}
	return &Content{Subject: confirmationSubject, HTML: htmlBody, Text: textBody}, nil
}
