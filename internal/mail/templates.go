package mail

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
)

var ErrUnknownTemplate = errors.New("unknown mail template")

type Rendered struct {
	Subject string
	Body    string
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	TemplateActivation: {
		subject: "Activate your account",
		body: template.Must(template.New(TemplateActivation).Option("missingkey=error").Parse(`Hello {{.name}},

Your activation code is:

    {{.code}}

It expires in {{.expiresIn}}. If you did not create an account, ignore this email.
`)),
	},
	TemplatePasswordReset: {
		subject: "Reset your password",
		body: template.Must(template.New(TemplatePasswordReset).Option("missingkey=error").Parse(`Hello {{.name}},

Use the code below to reset your password:

    {{.code}}

Or open this link: {{.link}}

It expires in {{.expiresIn}}. If you did not ask for a reset, ignore this email.
`)),
	},
}

func Render(name string, data map[string]string) (Rendered, error) {
	tpl, ok := templates[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Rendered{Subject: tpl.subject, Body: buf.String()}, nil
}
