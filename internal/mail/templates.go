package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

var tmpl = template.Must(template.New("mail").Parse(`
{{define "verify"}}<p>Hello {{.Name}},</p>
<p>Thanks for joining Garbage Collector. Please confirm your email address:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>If you did not create an account you can ignore this message.</p>{{end}}

{{define "reset"}}<p>Hello {{.Name}},</p>
<p>We received a request to reset your password. The link below is valid for {{.Validity}}:</p>
<p><a href="{{.Link}}">Reset my password</a></p>
<p>If you did not request a reset you can ignore this message.</p>{{end}}

{{define "closed"}}<p>Hello {{.Name}},</p>
<p>Your report <strong>{{.Title}}</strong> has been handled and closed.</p>
<p>{{.Points}} points were added to your balance. Thank you for keeping the city clean!</p>{{end}}

{{define "contact"}}<p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
<p>{{.Message}}</p>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func tokenLink(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// VerificationEmail links to the SPA's verify page with the raw token.
func VerificationEmail(baseURL, to, name, token string) (Message, error) {
	html, err := render("verify", map[string]string{
		"Name": name,
		"Link": tokenLink(baseURL, "/verify-email", token),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Verify your email", HTML: html}, nil
}

// PasswordResetEmail links to the SPA's reset page with the raw token.
func PasswordResetEmail(baseURL, to, name, token, validity string) (Message, error) {
	html, err := render("reset", map[string]string{
		"Name":     name,
		"Link":     tokenLink(baseURL, "/reset-password", token),
		"Validity": validity,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Password Reset Request", HTML: html}, nil
}

// CardClosedEmail tells a reporter their card was closed and credited.
func CardClosedEmail(to, name, title string, points int64) (Message, error) {
	html, err := render("closed", map[string]any{"Name": name, "Title": title, "Points": points})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your report has been handled", HTML: html}, nil
}

// ContactEmail forwards a contact form submission to the admin inbox.
// Replies go to the submitter.
func ContactEmail(adminTo, name, from, message string) (Message, error) {
	html, err := render("contact", map[string]string{"Name": name, "Email": from, "Message": message})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      adminTo,
		ReplyTo: from,
		Subject: "Contact Us form submission from " + name,
		HTML:    html,
	}, nil
}
