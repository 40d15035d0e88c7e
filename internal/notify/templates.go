package notify

import (
	"strings"
	"text/template"
)

var (
	contactTmpl = template.Must(template.New("contact").Parse(`New message from the church website contact form.

From:    {{.Name}} <{{.Email}}>
{{- if .Phone}}
Phone:   {{.Phone}}
{{- end}}
Subject: {{.Subject}}

{{.Body}}

--
Message id {{.ID}}
`))

	inquiryTmpl = template.Must(template.New("inquiry").Parse(`Someone asked about {{.Ministry}} on the church website.

From:  {{.Name}} <{{.Email}}>
{{- if .Phone}}
Phone: {{.Phone}}
{{- end}}

{{.Body}}

--
Message id {{.ID}}
`))
)

type templateData struct {
	ID       string
	Name     string
	Email    string
	Phone    string
	Subject  string
	Body     string
	Ministry string
}

func render(t *template.Template, data templateData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
