// Package event defines the closed set of business events that
// produce notifications, and the dispatcher business workflows raise
// them through. Dispatch is best-effort: a workflow fires
// "leave.request.approved" without knowing how, or whether, anyone is
// notified.
package event

import (
	"time"
)

// Name identifies a business event type on the wire.
type Name string

const (
	LeaveRequestCreated  Name = "leave.request.created"
	LeaveRequestApproved Name = "leave.request.approved"
	LeaveRequestRejected Name = "leave.request.rejected"

	IOUCreated  Name = "iou.created"
	IOUApproved Name = "iou.approved"
	IOURejected Name = "iou.rejected"
	IOUPaid     Name = "iou.paid"

	PayrollProcessed Name = "payroll.processed"

	AppraisalAssigned Name = "appraisal.assigned"
)

// LeaveRequestEvent is the payload for the three leave lifecycle
// events.
type LeaveRequestEvent struct {
	LeaveRequestID string    `json:"leave_request_id" validate:"required"`
	EmployeeID     string    `json:"employee_id" validate:"required"`
	LeaveType      string    `json:"leave_type" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Status         string    `json:"status"`
	ActorID        string    `json:"actor_id"`
}

// IOUEvent is the payload for the four IOU lifecycle events.
type IOUEvent struct {
	IOUID      string  `json:"iou_id" validate:"required"`
	EmployeeID string  `json:"employee_id" validate:"required"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	TenorDays  int     `json:"tenor" validate:"gte=0"`
	Status     string  `json:"status"`
	ActorID    string  `json:"actor_id"`
}

// PaydayEntry is one employee's slice of a payroll run.
type PaydayEntry struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	NetPay     float64 `json:"net_pay" validate:"gte=0"`
}

// PayrollProcessedEvent announces a completed payroll run.
type PayrollProcessedEvent struct {
	PayrollRunID string        `json:"payroll_run_id" validate:"required"`
	PayPeriod    string        `json:"pay_period" validate:"required"`
	Entries      []PaydayEntry `json:"payday_entries" validate:"required,min=1,dive"`
}

// AppraisalAssignedEvent announces an appraisal assignment.
type AppraisalAssignedEvent struct {
	AssignmentID  string `json:"assignment_id" validate:"required"`
	AppraiseeID   string `json:"appraisee_id" validate:"required"`
	AppraiserID   string `json:"appraiser_id" validate:"required"`
	AppraisalID   string `json:"appraisal_id" validate:"required"`
	AppraisalName string `json:"appraisal_name"`
}
