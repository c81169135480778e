package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
)

// Templates for the three transactional emails. Unknown template names fall
// back to a generic dump of the payload.
var templates = map[string]*template.Template{
	"welcome": template.Must(template.New("welcome").Parse(`
<h1>Welcome to Collabute!</h1>
<p>Hi {{.userName}},</p>
<p>Thanks for joining Collabute. We're excited to have you on board!</p>
<p>Get started by creating your first project or joining an existing one.</p>
<p>Best regards,<br>The Collabute Team</p>
`)),
	"project-invitation": template.Must(template.New("project-invitation").Parse(`
<h1>You've been invited to join a project</h1>
<p>Hi there,</p>
<p>You've been invited to join <strong>{{.projectName}}</strong> by {{.inviterName}}.</p>
<p>Click the link below to accept the invitation:</p>
<a href="{{.inviteLink}}">Accept Invitation</a>
<p>Best regards,<br>The Collabute Team</p>
`)),
	"issue-assigned": template.Must(template.New("issue-assigned").Parse(`
<h1>You've been assigned to an issue</h1>
<p>Hi {{.assigneeName}},</p>
<p>You've been assigned to issue <strong>"{{.issueTitle}}"</strong> in {{.projectName}}.</p>
<p>Click the link below to view the issue:</p>
<a href="{{.issueLink}}">View Issue</a>
<p>Best regards,<br>The Collabute Team</p>
`)),
}

// renderTemplate renders the named template with the given data
func renderTemplate(name string, data map[string]any) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		raw, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			raw = []byte("{}")
		}
		return fmt.Sprintf("<p>Template: %s</p><pre>%s</pre>", template.HTMLEscapeString(name), template.HTMLEscapeString(string(raw))), nil
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
