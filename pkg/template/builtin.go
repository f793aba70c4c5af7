package template

import "github.com/zayyadi/paroll-sub001/pkg/notification"

// fallbackName is the channel-wide default applied when a notification
// type has no bespoke template. It relies only on the title and message
// already carried by the notification.
const fallbackName = "default"

func builtins() []Template {
	tmpl := func(name string, ch notification.Channel, subject, body string, vars ...string) Template {
		return Template{
			Name:         name,
			Channel:      ch,
			Language:     DefaultLanguage,
			Version:      1,
			Subject:      subject,
			Body:         body,
			RequiredVars: vars,
		}
	}

	return []Template{
		tmpl(fallbackName, notification.ChannelEmail,
			"{{.title}}",
			"{{.title}}\n\n{{.message}}{{if .action_url}}\n\n{{if .action_label}}{{.action_label}}: {{end}}{{.action_url}}{{end}}",
			"title", "message"),
		tmpl(fallbackName, notification.ChannelPush,
			"{{.title}}",
			"{{.message}}",
			"title", "message"),
		tmpl(fallbackName, notification.ChannelSMS,
			"",
			"{{.title}}: {{.message}}",
			"title", "message"),
		tmpl(fallbackName, notification.ChannelInApp,
			"{{.title}}",
			"{{.message}}",
			"title", "message"),

		tmpl(string(notification.TypeLeaveRequestCreated), notification.ChannelEmail,
			"Leave request from {{.employee_name}}",
			"{{.employee_name}} requested {{.leave_type}} leave from {{.start_date}} to {{.end_date}}.{{if .reason}}\n\nReason: {{.reason}}{{end}}{{if .action_url}}\n\nReview: {{.action_url}}{{end}}",
			"employee_name", "leave_type", "start_date", "end_date"),
		tmpl(string(notification.TypeLeaveRequestApproved), notification.ChannelEmail,
			"Your leave request was approved",
			"Your {{.leave_type}} leave from {{.start_date}} to {{.end_date}} was approved by {{.approver_name}}.",
			"leave_type", "start_date", "end_date", "approver_name"),
		tmpl(string(notification.TypeLeaveRequestRejected), notification.ChannelEmail,
			"Your leave request was rejected",
			"Your {{.leave_type}} leave from {{.start_date}} to {{.end_date}} was rejected by {{.approver_name}}.{{if .reason}}\n\nReason: {{.reason}}{{end}}",
			"leave_type", "start_date", "end_date", "approver_name"),
		tmpl(string(notification.TypePayrollProcessed), notification.ChannelEmail,
			"Your payslip for {{.period}} is ready",
			"Payroll for {{.period}} has been processed. Net pay: {{.net_pay}}.{{if .action_url}}\n\nView payslip: {{.action_url}}{{end}}",
			"period", "net_pay"),
		tmpl(string(notification.TypeDigest), notification.ChannelEmail,
			"Your {{.frequency}} notification digest",
			"{{.summary}}{{if .action_url}}\n\nOpen notifications: {{.action_url}}{{end}}",
			"frequency", "summary"),
	}
}
