package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

// Kind selects the message template.
type Kind string

const (
	KindMedicine Kind = "medicine"
	KindFollowup Kind = "followup_test"
	KindAnnual   Kind = "annual_checkup"
	KindGreeting Kind = "greeting"
	KindOTP      Kind = "otp"
)

// TemplateData carries the per-message values interpolated into a template.
// TestDate uses the booking date layout (YYYY-MM-DD).
type TemplateData struct {
	TestName string
	TestDate string
	LabName  string
	Code     string
}

type renderContext struct {
	Name     string
	TestName string
	TestDate string
	LabName  string
	Code     string
}

const signature = "\n\n– {{.LabName}} Team"

var bodyTemplates = map[Kind]string{
	KindMedicine: "Hello {{.Name}},\n\n" +
		"{{if and .TestName .TestDate}}Your {{.TestName}} test was done on {{.TestDate}}.\n\n{{end}}" +
		"💊 Take your medicines on time\n" +
		"📅 Taking your medicines regularly every day is important" + signature,
	KindFollowup: "Hello {{.Name}},\n\n" +
		"{{if and .TestName .TestDate}}Your {{.TestName}} test was done on {{.TestDate}}.\n\n{{end}}" +
		"💊 Take your medicines on time\n" +
		"📅 Don't miss your follow-up test\n" +
		"🩺 An annual health check-up is important" + signature,
	KindAnnual: "Hello {{.Name}},\n\n" +
		"🩺 It is time for your annual health check-up.\n\n" +
		"💊 Take your medicines regularly\n" +
		"📅 Book your health check-up\n" +
		"🏥 Take care of your health" + signature,
	KindGreeting: "Hello {{.Name}} 👋\n\n" +
		"Thank you for logging in.\n\n" +
		"{{.LabName}} is with you in caring for your health.\n" +
		"If you need any help, please get in touch.\n" +
		"We are always ready to serve you." + signature,
	KindOTP: "Your OTP is {{.Code}}",
}

const fallbackTemplate = "Hello {{.Name}},\n\nThank you for keeping your health records up to date." + signature

var subjects = map[Kind]string{
	KindMedicine: "Medicine reminder",
	KindFollowup: "Time for your follow-up test",
	KindAnnual:   "Your annual health check-up is due",
	KindGreeting: "Welcome back",
	KindOTP:      "Your OTP",
}

// Renderer turns a kind plus data into message text. Templates are parsed
// once with strict missing-key semantics.
type Renderer struct {
	templates map[Kind]*template.Template
	fallback  *template.Template
	labName   string
	loc       *time.Location
}

// NewRenderer parses the built-in templates. labName is used when the data
// does not name a lab; dates are shown in loc.
func NewRenderer(labName string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{templates: make(map[Kind]*template.Template, len(bodyTemplates)), labName: labName, loc: loc}
	for kind, text := range bodyTemplates {
		r.templates[kind] = template.Must(template.New(string(kind)).Option("missingkey=error").Parse(text))
	}
	r.fallback = template.Must(template.New("fallback").Option("missingkey=error").Parse(fallbackTemplate))
	return r
}

// Render returns the subject and body for a message to user.
func (r *Renderer) Render(user records.User, kind Kind, data TemplateData) (string, string, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		tmpl = r.fallback
	}
	ctx := renderContext{
		Name:     user.Name,
		TestName: data.TestName,
		TestDate: r.formatDate(data.TestDate),
		LabName:  data.LabName,
		Code:     data.Code,
	}
	if ctx.LabName == "" {
		ctx.LabName = r.labName
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", "", fmt.Errorf("notify: render %s: %w", kind, err)
	}
	subject, ok := subjects[kind]
	if !ok {
		subject = ctx.LabName
	}
	return subject, buf.String(), nil
}

// formatDate shows YYYY-MM-DD as "2 January 2006"; other values pass through.
func (r *Renderer) formatDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.ParseInLocation(records.DateLayout, raw, r.loc)
	if err != nil {
		return raw
	}
	return t.Format("2 January 2006")
}
