package services

// Trigger types. Every predefined catalog entry owns exactly one of them.
const (
	TriggerClientCreated              = "client_created"
	TriggerClientInactive             = "client_inactive"
	TriggerInvoiceOverdue             = "invoice_overdue"
	TriggerMeetingScheduled           = "meeting_scheduled"
	TriggerBudgetExceeded             = "budget_exceeded"
	TriggerProjectDeadlineApproaching = "project_deadline_approaching"
	TriggerProjectCompleted           = "project_completed"
	TriggerProjectStarted             = "project_started"
	TriggerTaskOverdue                = "task_overdue"
	TriggerTaskCompleted              = "task_completed"
	TriggerInvoiceCreated             = "invoice_created"
	TriggerInvoicePaid                = "invoice_paid"
	TriggerProposalSent               = "proposal_sent"
	TriggerProposalAccepted           = "proposal_accepted"
	TriggerMeetingCompleted           = "meeting_completed"
	TriggerLeadCreated                = "lead_created"
	TriggerNegativeSentiment          = "negative_sentiment_detected"
	TriggerMilestoneReached           = "milestone_reached"
	TriggerClientAnniversary          = "client_anniversary"
	TriggerWeeklyReport               = "weekly_report"
)

// ActionSpec is the stored form of an action.
type ActionSpec struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
}

// CatalogEntry is a predefined automation template.
type CatalogEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	TriggerType string          `json:"trigger_type"`
	Conditions  []ConditionSpec `json:"trigger_conditions"`
	Actions     []ActionSpec    `json:"actions"`
}

// IsValidTriggerType reports whether t is one of the catalog trigger types.
func IsValidTriggerType(t string) bool {
	for _, e := range predefinedCatalog {
		if e.TriggerType == t {
			return true
		}
	}
	return false
}

// TriggerTypes lists every trigger type in catalog order.
func TriggerTypes() []string {
	out := make([]string, 0, len(predefinedCatalog))
	for _, e := range predefinedCatalog {
		out = append(out, e.TriggerType)
	}
	return out
}

// PredefinedCatalog returns a copy of the catalog that callers may mutate.
func PredefinedCatalog() []CatalogEntry {
	out := make([]CatalogEntry, len(predefinedCatalog))
	for i, e := range predefinedCatalog {
		cp := e
		cp.Conditions = append([]ConditionSpec(nil), e.Conditions...)
		cp.Actions = make([]ActionSpec, len(e.Actions))
		for j, a := range e.Actions {
			params := make(map[string]interface{}, len(a.Parameters))
			for k, v := range a.Parameters {
				params[k] = v
			}
			cp.Actions[j] = ActionSpec{Type: a.Type, Parameters: params}
		}
		out[i] = cp
	}
	return out
}

func notify(title, message, kind string) ActionSpec {
	return ActionSpec{Type: ActionCreateNotification, Parameters: map[string]interface{}{
		"title": title, "message": message, "type": kind,
	}}
}

// notifyDaily is notify for conditions that stay true across scheduled runs.
func notifyDaily(title, message, kind string) ActionSpec {
	a := notify(title, message, kind)
	a.Parameters["dedup_window_minutes"] = 1440.0
	return a
}

var predefinedCatalog = []CatalogEntry{
	{
		Name:        "Client onboarding",
		Description: "Welcome email, kickoff task and notification for a new client.",
		TriggerType: TriggerClientCreated,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"ai_task": AITaskEmailDraft,
				"purpose": "welcome a new client and outline the next onboarding steps",
				"subject": "Welcome aboard, {{client_name}}",
				"body":    "Hi {{client_name}},\n\nThanks for choosing {{freelancer_name}}. I'll be in touch shortly to plan our kickoff.",
			}},
			{Type: ActionCreateTask, Parameters: map[string]interface{}{
				"title": "Kickoff call with {{client_name}}", "priority": "high", "due_in_days": 3.0,
			}},
			notify("New client", "{{client_name}} was added. Onboarding started.", "success"),
		},
	},
	{
		Name:        "Inactive client follow-up",
		Description: "Re-engage clients with no recent communication or project work.",
		TriggerType: TriggerClientInactive,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"ai_task":              AITaskEmailDraft,
				"purpose":              "check in with a client we have not heard from in a while",
				"subject":              "Checking in, {{client_name}}",
				"body":                 "Hi {{client_name}},\n\nIt's been a while. Is there anything I can help with?",
				"dedup_window_minutes": 10080.0,
			}},
			notifyDaily("Inactive client", "{{client_name}} has been inactive for {{days_since_last_activity}} days.", "warning"),
		},
	},
	{
		Name:        "Overdue invoice reminder",
		Description: "Polite reminder for invoices past their due date.",
		TriggerType: TriggerInvoiceOverdue,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"subject":              "Invoice {{invoice_number}} is overdue",
				"body":                 "Hi {{client_name}},\n\nA friendly reminder that invoice {{invoice_number}} ({{invoice_amount}}) is past due.",
				"dedup_window_minutes": 4320.0,
			}},
			notifyDaily("Invoice overdue", "Invoice {{invoice_number}} for {{client_name}} is overdue.", "warning"),
		},
	},
	{
		Name:        "Meeting reminder",
		Description: "Reminder and calendar link ahead of a scheduled meeting.",
		TriggerType: TriggerMeetingScheduled,
		Actions: []ActionSpec{
			{Type: ActionCreateCalendarLink, Parameters: map[string]interface{}{"title": "{{event_title}}"}},
			notifyDaily("Upcoming meeting", "{{event_title}} starts soon.", "info"),
		},
	},
	{
		Name:        "Budget alert",
		Description: "Warn when a project has consumed most of its budget.",
		TriggerType: TriggerBudgetExceeded,
		Conditions:  []ConditionSpec{{Field: "percentage", Operator: OpGreaterThan, Value: 79.99}},
		Actions: []ActionSpec{
			notifyDaily("Budget alert", "{{project_name}} has used {{percentage}}% of its budget.", "warning"),
			{Type: ActionCreateTask, Parameters: map[string]interface{}{
				"title": "Review budget for {{project_name}}", "priority": "urgent", "due_in_days": 1.0,
				"dedup_window_minutes": 1440.0,
			}},
		},
	},
	{
		Name:        "Deadline approaching",
		Description: "Flag active projects whose deadline is close.",
		TriggerType: TriggerProjectDeadlineApproaching,
		Actions: []ActionSpec{
			notifyDaily("Deadline approaching", "{{project_name}} is due on {{deadline}}.", "warning"),
			{Type: ActionCreateTask, Parameters: map[string]interface{}{
				"title": "Wrap up {{project_name}}", "priority": "high", "due_in_days": 1.0,
				"dedup_window_minutes": 1440.0,
			}},
		},
	},
	{
		Name:        "Project completed",
		Description: "Thank the client and send a closing report.",
		TriggerType: TriggerProjectCompleted,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"subject": "{{project_name}} is complete",
				"body":    "Hi {{client_name}},\n\n{{project_name}} is wrapped up. Thank you for the collaboration!",
			}},
			{Type: ActionGenerateReport, Parameters: map[string]interface{}{"title": "Closing report for {{client_name}}"}},
		},
	},
	{
		Name:        "Project started",
		Description: "Kickoff checklist when a project becomes active.",
		TriggerType: TriggerProjectStarted,
		Actions: []ActionSpec{
			{Type: ActionCreateTask, Parameters: map[string]interface{}{
				"title": "Share project plan for {{project_name}}", "priority": "medium", "due_in_days": 2.0,
			}},
			notify("Project started", "{{project_name}} is now active.", "info"),
		},
	},
	{
		Name:        "Overdue task",
		Description: "Notify when a task is past its due date.",
		TriggerType: TriggerTaskOverdue,
		Actions: []ActionSpec{
			notifyDaily("Task overdue", "{{task_title}} is overdue.", "warning"),
		},
	},
	{
		Name:        "Task completed",
		Description: "Log completed tasks.",
		TriggerType: TriggerTaskCompleted,
		Actions: []ActionSpec{
			notify("Task completed", "{{task_title}} is done.", "success"),
		},
	},
	{
		Name:        "Invoice created",
		Description: "Send a new invoice to the client.",
		TriggerType: TriggerInvoiceCreated,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"subject": "New invoice {{invoice_number}}",
				"body":    "Hi {{client_name}},\n\nInvoice {{invoice_number}} ({{invoice_amount}}) is ready.",
			}},
		},
	},
	{
		Name:        "Invoice paid",
		Description: "Thank the client for a payment.",
		TriggerType: TriggerInvoicePaid,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"subject": "Payment received, thank you",
				"body":    "Hi {{client_name}},\n\nPayment for invoice {{invoice_number}} was received. Thank you!",
			}},
			notify("Invoice paid", "{{client_name}} paid invoice {{invoice_number}}.", "success"),
		},
	},
	{
		Name:        "Proposal follow-up",
		Description: "Analyse a sent proposal and schedule a follow-up.",
		TriggerType: TriggerProposalSent,
		Actions: []ActionSpec{
			{Type: ActionCreateTask, Parameters: map[string]interface{}{
				"title": "Follow up on proposal with {{client_name}}", "priority": "medium", "due_in_days": 5.0,
				"ai_task": AITaskProposalAnalysis,
			}},
		},
	},
	{
		Name:        "Proposal accepted",
		Description: "Move the project forward when a proposal is accepted.",
		TriggerType: TriggerProposalAccepted,
		Actions: []ActionSpec{
			{Type: ActionUpdateProjectStatus, Parameters: map[string]interface{}{"status": "active"}},
			notify("Proposal accepted", "{{client_name}} accepted your proposal.", "success"),
		},
	},
	{
		Name:        "Meeting follow-up",
		Description: "Send a recap after a meeting.",
		TriggerType: TriggerMeetingCompleted,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"ai_task": AITaskEmailDraft,
				"purpose": "recap a meeting and confirm next steps",
				"subject": "Thanks for the meeting, {{client_name}}",
				"body":    "Hi {{client_name}},\n\nThanks for your time today. I'll follow up with the next steps.",
			}},
		},
	},
	{
		Name:        "New lead",
		Description: "Draft a proposal for a new lead.",
		TriggerType: TriggerLeadCreated,
		Actions: []ActionSpec{
			{Type: ActionCreateProposal, Parameters: map[string]interface{}{
				"title": "Proposal for {{client_name}}", "ai_task": AITaskPricingOptimization,
			}},
			notify("New lead", "{{client_name}} is a new lead. A draft proposal is ready.", "info"),
		},
	},
	{
		Name:        "Negative sentiment",
		Description: "Escalate communications with a negative tone.",
		TriggerType: TriggerNegativeSentiment,
		Actions: []ActionSpec{
			{Type: ActionCreateTask, Parameters: map[string]interface{}{
				"title": "Address concerns from {{client_name}}", "priority": "urgent", "due_in_days": 1.0,
				"ai_task": AITaskSentimentAnalysis,
			}},
			notify("Negative sentiment", "A recent message from {{client_name}} sounds unhappy.", "error"),
		},
	},
	{
		Name:        "Milestone reached",
		Description: "Share progress when a milestone is reached.",
		TriggerType: TriggerMilestoneReached,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"subject": "{{project_name}}: milestone reached",
				"body":    "Hi {{client_name}},\n\nWe just reached a milestone on {{project_name}}.",
			}},
		},
	},
	{
		Name:        "Client anniversary",
		Description: "Celebrate the anniversary of a client relationship.",
		TriggerType: TriggerClientAnniversary,
		Actions: []ActionSpec{
			{Type: ActionSendEmail, Parameters: map[string]interface{}{
				"subject": "Happy anniversary, {{client_name}}!",
				"body":    "Hi {{client_name}},\n\nIt's been a year since we started working together. Thank you!",
			}},
		},
	},
	{
		Name:        "Weekly report",
		Description: "Weekly activity summary per client.",
		TriggerType: TriggerWeeklyReport,
		Actions: []ActionSpec{
			{Type: ActionGenerateReport, Parameters: map[string]interface{}{"title": "Weekly report for {{client_name}}"}},
		},
	},
}
