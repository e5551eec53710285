// Package template renders the emails sent to mailto unsubscribe addresses.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// EmailData contains all data available to unsubscribe templates
type EmailData struct {
	// The mailbox being unsubscribed
	Account string

	// Sender info
	SenderName   string
	SenderDomain string
	ListAddress  string

	// Metadata
	Date     string
	Year     int
	Template string
}

// Email represents a rendered email ready to send
type Email struct {
	Subject string
	Body    string
}

// Engine handles email template rendering
type Engine struct {
	templates map[string]*template.Template
}

// NewEngine creates a new template engine
func NewEngine() (*Engine, error) {
	e := &Engine{
		templates: make(map[string]*template.Template),
	}

	templateNames := []string{"unsubscribe", "polite"}
	for _, name := range templateNames {
		content, err := embeddedTemplates.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", name, err)
		}

		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		e.templates[name] = tmpl
	}

	return e, nil
}

// Render generates an unsubscribe email from a template
func (e *Engine) Render(templateName, account, senderName, senderDomain, listAddress string) (*Email, error) {
	tmpl, ok := e.templates[templateName]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", templateName)
	}

	now := time.Now()
	data := EmailData{
		Account:      account,
		SenderName:   senderName,
		SenderDomain: senderDomain,
		ListAddress:  listAddress,
		Date:         now.Format("January 2, 2006"),
		Year:         now.Year(),
		Template:     templateName,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	// RFC 8058 clients expect the bare word in the subject; list software
	// often keys on it regardless of the body
	return &Email{
		Subject: "Unsubscribe",
		Body:    buf.String(),
	}, nil
}

// AvailableTemplates returns the list of available template names
func (e *Engine) AvailableTemplates() []string {
	templates := make([]string, 0, len(e.templates))
	for name := range e.templates {
		templates = append(templates, name)
	}
	return templates
}
