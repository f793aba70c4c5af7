package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/notifier"
)

// Sender is the slice of the notification facade the event handlers
// use.
type Sender interface {
	Send(ctx context.Context, in notifier.SendInput) (*notification.Notification, error)
	SendBulk(ctx context.Context, inputs []notifier.SendInput) ([]*notification.Notification, error)
}

// Directory resolves event actors to notification recipients.
type Directory interface {
	// HRRecipients returns the employee IDs of HR staff who receive
	// workflow notifications (new requests awaiting action).
	HRRecipients(ctx context.Context) ([]string, error)

	// EmployeeName returns a display name, or "" when unknown.
	EmployeeName(ctx context.Context, employeeID string) (string, error)
}

// Notifications binds every business event to its notification
// fan-out.
type Notifications struct {
	sender    Sender
	directory Directory
	logger    *slog.Logger
	baseURL   string
}

// NotificationsOption configures the event-to-notification binding.
type NotificationsOption func(*Notifications)

// WithNotificationsLogger sets the logger.
func WithNotificationsLogger(l *slog.Logger) NotificationsOption {
	return func(n *Notifications) { n.logger = l }
}

// WithBaseURL prefixes action URLs, e.g. "https://hr.example.com".
func WithBaseURL(u string) NotificationsOption {
	return func(n *Notifications) { n.baseURL = u }
}

// NewNotifications creates the binding.
func NewNotifications(sender Sender, directory Directory, opts ...NotificationsOption) *Notifications {
	n := &Notifications{
		sender:    sender,
		directory: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RegisterAll wires every event name to its handler.
func (n *Notifications) RegisterAll(d *Dispatcher) {
	d.Register(LeaveRequestCreated, TypedHandler(n.LeaveRequestCreated))
	d.Register(LeaveRequestApproved, TypedHandler(n.LeaveRequestApproved))
	d.Register(LeaveRequestRejected, TypedHandler(n.LeaveRequestRejected))
	d.Register(IOUCreated, TypedHandler(n.IOUCreated))
	d.Register(IOUApproved, TypedHandler(n.IOUApproved))
	d.Register(IOURejected, TypedHandler(n.IOURejected))
	d.Register(IOUPaid, TypedHandler(n.IOUPaid))
	d.Register(PayrollProcessed, TypedHandler(n.PayrollProcessed))
	d.Register(AppraisalAssigned, TypedHandler(n.AppraisalAssigned))
}

// LeaveRequestCreated notifies every HR recipient that a request
// awaits action.
func (n *Notifications) LeaveRequestCreated(ctx context.Context, ev LeaveRequestEvent) error {
	name := n.employeeName(ctx, ev.EmployeeID)

	recipients, err := n.directory.HRRecipients(ctx)
	if err != nil {
		return fmt.Errorf("resolve hr recipients: %w", err)
	}

	inputs := make([]notifier.SendInput, 0, len(recipients))
	for _, r := range recipients {
		inputs = append(inputs, notifier.SendInput{
			Recipient: r,
			Type:      notification.TypeLeaveRequestCreated,
			Priority:  notification.PriorityMedium,
			Title:     "New Leave Request",
			Message:   fmt.Sprintf("%s requested %s leave from %s to %s.", name, ev.LeaveType, ev.StartDate.Format("2 Jan 2006"), ev.EndDate.Format("2 Jan 2006")),
			Related:   notification.RelatedObject{Kind: notification.RelatedLeaveRequest, ID: ev.LeaveRequestID},
			ActionURL: n.actionURL("/leave/" + ev.LeaveRequestID),
		})
	}
	_, err = n.sender.SendBulk(ctx, inputs)
	return err
}

// LeaveRequestApproved notifies the requesting employee.
func (n *Notifications) LeaveRequestApproved(ctx context.Context, ev LeaveRequestEvent) error {
	_, err := n.sender.Send(ctx, notifier.SendInput{
		Recipient: ev.EmployeeID,
		Type:      notification.TypeLeaveRequestApproved,
		Priority:  notification.PriorityMedium,
		Title:     "Leave Request Approved",
		Message:   fmt.Sprintf("Your %s leave from %s to %s was approved.", ev.LeaveType, ev.StartDate.Format("2 Jan 2006"), ev.EndDate.Format("2 Jan 2006")),
		Related:   notification.RelatedObject{Kind: notification.RelatedLeaveRequest, ID: ev.LeaveRequestID},
		ActionURL: n.actionURL("/leave/" + ev.LeaveRequestID),
	})
	return err
}

// LeaveRequestRejected notifies the requesting employee.
func (n *Notifications) LeaveRequestRejected(ctx context.Context, ev LeaveRequestEvent) error {
	_, err := n.sender.Send(ctx, notifier.SendInput{
		Recipient: ev.EmployeeID,
		Type:      notification.TypeLeaveRequestRejected,
		Priority:  notification.PriorityMedium,
		Title:     "Leave Request Rejected",
		Message:   fmt.Sprintf("Your %s leave request was rejected.", ev.LeaveType),
		Related:   notification.RelatedObject{Kind: notification.RelatedLeaveRequest, ID: ev.LeaveRequestID},
		ActionURL: n.actionURL("/leave/" + ev.LeaveRequestID),
	})
	return err
}

// IOUCreated notifies HR that an IOU request awaits review.
func (n *Notifications) IOUCreated(ctx context.Context, ev IOUEvent) error {
	name := n.employeeName(ctx, ev.EmployeeID)

	recipients, err := n.directory.HRRecipients(ctx)
	if err != nil {
		return fmt.Errorf("resolve hr recipients: %w", err)
	}

	inputs := make([]notifier.SendInput, 0, len(recipients))
	for _, r := range recipients {
		inputs = append(inputs, notifier.SendInput{
			Recipient: r,
			Type:      notification.TypeIOUCreated,
			Priority:  notification.PriorityMedium,
			Title:     "New IOU Request",
			Message:   fmt.Sprintf("%s requested an IOU of %.2f over %d days.", name, ev.Amount, ev.TenorDays),
			Related:   notification.RelatedObject{Kind: notification.RelatedIOU, ID: ev.IOUID},
			ActionURL: n.actionURL("/iou/" + ev.IOUID),
		})
	}
	_, err = n.sender.SendBulk(ctx, inputs)
	return err
}

// IOUApproved notifies the requesting employee.
func (n *Notifications) IOUApproved(ctx context.Context, ev IOUEvent) error {
	return n.iouOutcome(ctx, ev, notification.TypeIOUApproved, "IOU Approved",
		fmt.Sprintf("Your IOU request of %.2f was approved.", ev.Amount))
}

// IOURejected notifies the requesting employee.
func (n *Notifications) IOURejected(ctx context.Context, ev IOUEvent) error {
	return n.iouOutcome(ctx, ev, notification.TypeIOURejected, "IOU Rejected",
		fmt.Sprintf("Your IOU request of %.2f was rejected.", ev.Amount))
}

// IOUPaid notifies the employee that the payout went through.
func (n *Notifications) IOUPaid(ctx context.Context, ev IOUEvent) error {
	return n.iouOutcome(ctx, ev, notification.TypeIOUPaid, "IOU Paid",
		fmt.Sprintf("Your IOU of %.2f has been paid out.", ev.Amount))
}

func (n *Notifications) iouOutcome(ctx context.Context, ev IOUEvent, typ notification.Type, title, message string) error {
	_, err := n.sender.Send(ctx, notifier.SendInput{
		Recipient: ev.EmployeeID,
		Type:      typ,
		Priority:  notification.PriorityMedium,
		Title:     title,
		Message:   message,
		Related:   notification.RelatedObject{Kind: notification.RelatedIOU, ID: ev.IOUID},
		ActionURL: n.actionURL("/iou/" + ev.IOUID),
	})
	return err
}

// PayrollProcessed notifies every employee on the run that their
// payslip is ready. High priority: payday is time-sensitive and may
// go out over SMS.
func (n *Notifications) PayrollProcessed(ctx context.Context, ev PayrollProcessedEvent) error {
	inputs := make([]notifier.SendInput, 0, len(ev.Entries))
	for _, entry := range ev.Entries {
		inputs = append(inputs, notifier.SendInput{
			Recipient: entry.EmployeeID,
			Type:      notification.TypePayrollProcessed,
			Priority:  notification.PriorityHigh,
			Title:     "Payslip Ready",
			Message:   fmt.Sprintf("Your payslip for %s is ready.", ev.PayPeriod),
			Related:   notification.RelatedObject{Kind: notification.RelatedPayrollRun, ID: ev.PayrollRunID},
			ActionURL: n.actionURL("/payslips/" + ev.PayrollRunID),
		})
	}
	_, err := n.sender.SendBulk(ctx, inputs)
	return err
}

// AppraisalAssigned notifies both sides of the assignment.
func (n *Notifications) AppraisalAssigned(ctx context.Context, ev AppraisalAssignedEvent) error {
	appraiser := n.employeeName(ctx, ev.AppraiserID)
	appraisee := n.employeeName(ctx, ev.AppraiseeID)

	_, err := n.sender.SendBulk(ctx, []notifier.SendInput{
		{
			Recipient: ev.AppraiseeID,
			Type:      notification.TypeAppraisalAssigned,
			Priority:  notification.PriorityMedium,
			Title:     "Appraisal Assigned",
			Message:   fmt.Sprintf("%s will conduct your %q appraisal.", appraiser, ev.AppraisalName),
			Related:   notification.RelatedObject{Kind: notification.RelatedAppraisal, ID: ev.AppraisalID},
			ActionURL: n.actionURL("/appraisals/" + ev.AssignmentID),
		},
		{
			Recipient: ev.AppraiserID,
			Type:      notification.TypeAppraisalAssigned,
			Priority:  notification.PriorityMedium,
			Title:     "Appraisal to Conduct",
			Message:   fmt.Sprintf("You were assigned to appraise %s (%q).", appraisee, ev.AppraisalName),
			Related:   notification.RelatedObject{Kind: notification.RelatedAppraisal, ID: ev.AppraisalID},
			ActionURL: n.actionURL("/appraisals/" + ev.AssignmentID),
		},
	})
	return err
}

func (n *Notifications) employeeName(ctx context.Context, employeeID string) string {
	name, err := n.directory.EmployeeName(ctx, employeeID)
	if err != nil || name == "" {
		return "An employee"
	}
	return name
}

func (n *Notifications) actionURL(path string) string {
	if n.baseURL == "" {
		return path
	}
	return n.baseURL + path
}
