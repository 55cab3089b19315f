package templates

const signature = `Best regards,
{{.Business.Name}}
{{- if .Business.Phone}}
Phone: {{.Business.Phone}}
{{- end}}
{{- if .Business.Email}}
Email: {{.Business.Email}}
{{- end}}
{{- if .Business.Website}}
Website: {{.Business.Website}}
{{- end}}
`

const sessionDetails = `
Session: {{.Appointment.SessionType}}
Date: {{date .Appointment.StartTime}}
Time: {{clock .Appointment.StartTime}}
Duration: {{duration .Appointment.Duration}}
{{- if .Appointment.Location}}
Location: {{.Appointment.Location}}
{{- else if .Business.Address}}
Location: {{.Business.Address}}
{{- end}}
`

func reminderText(intro, advice string) string {
	return `Dear {{.Appointment.ClientName}},

` + intro + `
` + sessionDetails + `
` + advice + `

If you need to reschedule or have any questions, please contact us as soon as possible.

{{template "signature" .}}`
}

var builtins = map[string]string{
	Confirmation: `Dear {{.Appointment.ClientName}},

Your appointment has been confirmed and we're excited to work with you.
` + sessionDetails + `Total: {{money .Appointment.TotalAmount}}

We'll send you reminders as your session gets closer.

{{template "signature" .}}`,

	Cancellation: `Dear {{.Appointment.ClientName}},

Your {{.Appointment.SessionType}} session on {{date .Appointment.StartTime}} at {{clock .Appointment.StartTime}} has been cancelled.
{{- if .Reason}}

Reason: {{.Reason}}
{{- end}}

We'd love to find another time that works for you. Just reply to this email to rebook.

{{template "signature" .}}`,

	"reminder_2weeks": reminderText(
		"Your photography session is two weeks away!",
		"Now is a great time to start planning outfits and any props you'd like to bring."),
	"reminder_1week": reminderText(
		"Your photography session is one week away!",
		"Please let us know if there is anything special you'd like us to capture."),
	"reminder_3days": reminderText(
		"Your photography session is in 3 days.",
		"Make sure outfits are ready and everyone is well rested."),
	"reminder_2days": reminderText(
		"Your photography session is in 2 days.",
		"Please double check the time and location below."),
	"reminder_1day": reminderText(
		"Your photography session is tomorrow!",
		"Please arrive 10 minutes early so we can start on time."),
	"reminder_same_day": reminderText(
		"Your photography session is today!",
		"Please arrive 10 minutes early so we can start on time."),
	Reminder: reminderText(
		"This is a friendly reminder that your {{.Appointment.SessionType}} session is {{if eq .TimeUntil \"today\"}}today{{else}}in {{.TimeUntil}}{{end}}.",
		"Please arrive 10 minutes early so we can start on time."),

	Message: `Dear {{if .Appointment.ClientName}}{{.Appointment.ClientName}}{{else}}Client{{end}},

This is an automated message from {{.Business.Name}}. If you have any questions, please contact us.

{{template "signature" .}}`,
}
