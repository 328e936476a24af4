package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"taskelio/internal/config"
	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
)

// Action kinds.
const (
	ActionSendEmail           = "send_email"
	ActionCreateTask          = "create_task"
	ActionCreateCalendarLink  = "create_calendar_link"
	ActionCreateNotification  = "create_notification"
	ActionUpdateProjectStatus = "update_project_status"
	ActionGenerateReport      = "generate_report"
	ActionCreateProposal      = "create_proposal"
	ActionCreateInvoice       = "create_invoice"
	ActionSendWhatsApp        = "send_whatsapp"
)

var (
	ErrActionNotImplemented = errors.New("action not implemented")
	ErrUnknownAction        = errors.New("unknown action type")
	ErrInvalidTransition    = errors.New("invalid project status transition")
	ErrMissingParameter     = errors.New("missing action parameter")
)

// dedupedActions are claimed in automation_dedup_keys before running.
var dedupedActions = map[string]bool{
	ActionSendEmail:          true,
	ActionCreateTask:         true,
	ActionCreateNotification: true,
}

var projectTransitions = map[string][]string{
	"planning": {"active", "cancelled"},
	"active":   {"on_hold", "completed", "cancelled"},
	"on_hold":  {"active", "cancelled"},
}

// IsValidActionType reports whether t names a declared action kind.
func IsValidActionType(t string) bool {
	switch t {
	case ActionSendEmail, ActionCreateTask, ActionCreateCalendarLink, ActionCreateNotification,
		ActionUpdateProjectStatus, ActionGenerateReport, ActionCreateProposal,
		ActionCreateInvoice, ActionSendWhatsApp:
		return true
	}
	return false
}

// CanTransitionProject reports whether a project may move from -> to.
func CanTransitionProject(from, to string) bool {
	for _, s := range projectTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ExecutionContext is everything an action may read.
type ExecutionContext struct {
	Profile     *models.Profile
	Client      *models.Client
	Project     *models.Project
	Automation  *models.AutomationConfig
	ExecutionID string
	EntityID    string
	// ActionIndex is the action's position in the automation. Two actions of
	// the same kind claim separate dedup keys.
	ActionIndex int
	Payload     map[string]interface{}
	Generated   *GenerationResult
}

// ActionResult is what one action reports back to the dispatcher.
type ActionResult struct {
	Type    string                 `json:"type"`
	Success bool                   `json:"success"`
	Skipped bool                   `json:"skipped,omitempty"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`

	Generated *GenerationResult `json:"-"`
}

type ActionExecutor struct {
	generator     *ContentGenerator
	sender        EmailSender
	notifications *NotificationService
	dedup         *DedupGuard
	cfg           config.AutomationConfig
	logger        *logrus.Logger
	now           func() time.Time
}

func NewActionExecutor(generator *ContentGenerator, sender EmailSender, notifications *NotificationService,
	dedup *DedupGuard, cfg config.AutomationConfig, logger *logrus.Logger) *ActionExecutor {
	if logger == nil {
		logger = logrus.New()
	}
	return &ActionExecutor{
		generator:     generator,
		sender:        sender,
		notifications: notifications,
		dedup:         dedup,
		cfg:           cfg,
		logger:        logger,
		now:           utcNow,
	}
}

// Execute runs one action. A non-nil error means the action failed; the
// result still describes what happened.
func (e *ActionExecutor) Execute(ctx context.Context, scope *store.Scope, action ActionSpec, ec *ExecutionContext) (ActionResult, error) {
	result := ActionResult{Type: action.Type}
	if ec == nil {
		ec = &ExecutionContext{}
	}
	if action.Parameters == nil {
		action.Parameters = map[string]interface{}{}
	}

	var key *DedupKey
	if dedupedActions[action.Type] && ec.Automation != nil && ec.EntityID != "" && e.dedup != nil {
		key = &DedupKey{
			OwnerID:      scope.OwnerID(),
			AutomationID: ec.Automation.ID,
			ActionType:   dedupActionKey(ec.ActionIndex, action.Type),
			EntityID:     ec.EntityID,
		}
		claimed, err := e.dedup.Claim(ctx, *key, e.dedupWindow(action))
		if err != nil {
			result.Error = err.Error()
			return result, err
		}
		if !claimed {
			result.Skipped = true
			result.Message = "already executed for this entity within the dedup window"
			return result, nil
		}
	}

	var (
		data map[string]interface{}
		msg  string
	)
	err := e.generate(ctx, action, ec, &result)
	if err == nil {
		data, msg, err = e.run(ctx, scope, action, ec)
	}
	if err != nil {
		if key != nil {
			if relErr := e.dedup.Release(ctx, *key); relErr != nil {
				e.logger.WithField("action", action.Type).Warnf("release dedup claim: %v", relErr)
			}
		}
		result.Error = err.Error()
		return result, err
	}
	result.Success = true
	result.Message = msg
	result.Data = data
	return result, nil
}

func dedupActionKey(index int, actionType string) string {
	return fmt.Sprintf("%d:%s", index, actionType)
}

// generate fills ec.Generated when the action names an ai_task. It runs after
// the dedup claim so skipped actions never reach the upstream.
func (e *ActionExecutor) generate(ctx context.Context, action ActionSpec, ec *ExecutionContext, result *ActionResult) error {
	task := stringParam(action.Parameters, "ai_task")
	if task == "" || e.generator == nil {
		return nil
	}
	input := map[string]interface{}{"trigger": ec.Payload}
	if purpose := stringParam(action.Parameters, "purpose"); purpose != "" {
		input["purpose"] = purpose
	}
	if ec.Profile != nil {
		input["freelancer"] = ec.Profile.DisplayName()
	}
	if ec.Client != nil {
		input["client"] = map[string]interface{}{"name": ec.Client.Name, "company": ec.Client.Company, "status": ec.Client.Status}
	}
	if ec.Project != nil {
		input["project"] = map[string]interface{}{"name": ec.Project.Name, "status": ec.Project.Status, "budget": ec.Project.Budget}
	}
	gen, err := e.generator.Generate(ctx, task, input)
	if err != nil {
		return err
	}
	ec.Generated = gen
	result.Generated = gen
	return nil
}

func (e *ActionExecutor) run(ctx context.Context, scope *store.Scope, action ActionSpec, ec *ExecutionContext) (map[string]interface{}, string, error) {
	vars := templateVars(ec)
	p := action.Parameters

	switch action.Type {
	case ActionSendEmail:
		return e.sendEmail(ctx, p, ec, vars)
	case ActionCreateTask:
		return e.createTask(ctx, scope, p, ec, vars)
	case ActionCreateCalendarLink:
		return e.createCalendarLink(ctx, scope, p, ec, vars)
	case ActionCreateNotification:
		return e.createNotification(ctx, scope, p, ec, vars)
	case ActionUpdateProjectStatus:
		return e.updateProjectStatus(ctx, scope, p, ec)
	case ActionGenerateReport:
		return e.generateReport(ctx, scope, p, ec, vars)
	case ActionCreateProposal:
		return e.createProposal(ctx, scope, p, ec, vars)
	case ActionCreateInvoice, ActionSendWhatsApp:
		return nil, "", fmt.Errorf("%w: %s", ErrActionNotImplemented, action.Type)
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
	}
}

func (e *ActionExecutor) dedupWindow(action ActionSpec) time.Duration {
	if m, ok := toFloat(action.Parameters["dedup_window_minutes"]); ok && m > 0 {
		return time.Duration(m * float64(time.Minute))
	}
	if e.cfg.DedupWindow > 0 {
		return e.cfg.DedupWindow
	}
	return 2 * time.Hour
}

func (e *ActionExecutor) sendEmail(ctx context.Context, p map[string]interface{}, ec *ExecutionContext, vars map[string]string) (map[string]interface{}, string, error) {
	to := renderTemplate(stringParam(p, "to"), vars)
	if to == "" && ec.Client != nil {
		to = ec.Client.Email
	}
	if to == "" {
		return nil, "", fmt.Errorf("%w: no recipient email", ErrMissingParameter)
	}

	subject := renderTemplate(stringParam(p, "subject"), vars)
	body := renderTemplate(stringParam(p, "body"), vars)
	source := "template"
	if g := ec.Generated; g != nil && g.Task == AITaskEmailDraft && !g.Degraded() {
		if s, _ := g.Content["subject"].(string); s != "" {
			subject = s
		}
		if b, _ := g.Content["body"].(string); b != "" {
			body = b
			source = "generated"
		}
	}
	if subject == "" || body == "" {
		return nil, "", fmt.Errorf("%w: subject and body", ErrMissingParameter)
	}
	if e.sender == nil {
		return nil, "", errors.New("email sender not configured")
	}

	id, err := e.sender.Send(ctx, EmailMessage{
		To:      to,
		Subject: subject,
		HTML:    textToHTML(body),
		Text:    body,
	})
	if err != nil {
		return nil, "", err
	}
	return map[string]interface{}{"message_id": id, "to": to, "subject": subject, "source": source},
		"email sent to " + to, nil
}

func (e *ActionExecutor) createTask(ctx context.Context, scope *store.Scope, p map[string]interface{}, ec *ExecutionContext, vars map[string]string) (map[string]interface{}, string, error) {
	title := renderTemplate(stringParam(p, "title"), vars)
	if title == "" {
		return nil, "", fmt.Errorf("%w: title", ErrMissingParameter)
	}
	task := &models.Task{
		Title:       title,
		Description: renderTemplate(stringParam(p, "description"), vars),
		Status:      "todo",
		Priority:    stringParam(p, "priority"),
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if days, ok := toFloat(p["due_in_days"]); ok {
		due := e.now().Add(time.Duration(days * float64(24*time.Hour)))
		task.DueDate = &due
	}
	if g := ec.Generated; g != nil {
		if b, err := json.MarshalIndent(g.Content, "", "  "); err == nil {
			task.Description = strings.TrimSpace(task.Description + "\n\nAI analysis (" + g.Task + "):\n" + string(b))
		}
	}
	if ec.Client != nil {
		task.ClientID = &ec.Client.ID
	}
	if ec.Project != nil {
		task.ProjectID = &ec.Project.ID
		if task.ClientID == nil {
			task.ClientID = ec.Project.ClientID
		}
	}
	if ec.Automation != nil {
		task.AutomationID = &ec.Automation.ID
	}
	if err := scope.Create(ctx, task); err != nil {
		return nil, "", fmt.Errorf("create task: %w", err)
	}
	return map[string]interface{}{"task_id": task.ID, "title": task.Title}, "task created", nil
}

func (e *ActionExecutor) createCalendarLink(ctx context.Context, scope *store.Scope, p map[string]interface{}, ec *ExecutionContext, vars map[string]string) (map[string]interface{}, string, error) {
	title := renderTemplate(stringParam(p, "title"), vars)
	if title == "" {
		title = vars["event_title"]
	}
	if title == "" && ec.Client != nil {
		title = "Meeting with " + ec.Client.Name
	}
	if title == "" {
		return nil, "", fmt.Errorf("%w: title", ErrMissingParameter)
	}
	details := renderTemplate(stringParam(p, "description"), vars)
	location := renderTemplate(stringParam(p, "location"), vars)

	// A detected meeting already has a row: attach the link to it.
	if eventID := vars["event_id"]; eventID != "" {
		var existing models.CalendarEvent
		if err := scope.First(ctx, &existing, eventID); err == nil {
			if existing.ExternalLink == "" {
				existing.ExternalLink = GoogleCalendarLink(existing.Title, existing.Description, existing.Location, existing.StartTime, existing.EndTime)
				if err := scope.Model(ctx, &models.CalendarEvent{}).Where("id = ?", existing.ID).
					Update("external_link", existing.ExternalLink).Error; err != nil {
					return nil, "", fmt.Errorf("update calendar event: %w", err)
				}
			}
			return map[string]interface{}{"event_id": existing.ID, "link": existing.ExternalLink}, "calendar link attached", nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, "", fmt.Errorf("load calendar event: %w", err)
		}
	}

	start := e.now().Add(24 * time.Hour).Truncate(time.Hour)
	if h, ok := toFloat(p["start_in_hours"]); ok {
		start = e.now().Add(time.Duration(h * float64(time.Hour))).Truncate(time.Minute)
	}
	duration := 30 * time.Minute
	if m, ok := toFloat(p["duration_minutes"]); ok && m > 0 {
		duration = time.Duration(m * float64(time.Minute))
	} else if g := ec.Generated; g != nil && g.Task == AITaskMeetingScheduling && !g.Degraded() {
		if m, ok := toFloat(g.Content["duration_minutes"]); ok && m > 0 {
			duration = time.Duration(m * float64(time.Minute))
		}
	}
	end := start.Add(duration)

	event := &models.CalendarEvent{
		Title:        title,
		Description:  details,
		Location:     location,
		StartTime:    start,
		EndTime:      end,
		ExternalLink: GoogleCalendarLink(title, details, location, start, end),
	}
	if ec.Client != nil {
		event.ClientID = &ec.Client.ID
	}
	if ec.Project != nil {
		event.ProjectID = &ec.Project.ID
	}
	if err := scope.Create(ctx, event); err != nil {
		return nil, "", fmt.Errorf("create calendar event: %w", err)
	}
	return map[string]interface{}{"event_id": event.ID, "link": event.ExternalLink}, "calendar link created", nil
}

func (e *ActionExecutor) createNotification(ctx context.Context, scope *store.Scope, p map[string]interface{}, ec *ExecutionContext, vars map[string]string) (map[string]interface{}, string, error) {
	if e.notifications == nil {
		return nil, "", errors.New("notification service not configured")
	}
	title := renderTemplate(stringParam(p, "title"), vars)
	if title == "" {
		return nil, "", fmt.Errorf("%w: title", ErrMissingParameter)
	}
	route := renderTemplate(stringParam(p, "route"), vars)
	if route == "" {
		route = entityRoute(ec)
	}
	actionData := map[string]interface{}{"entity_id": ec.EntityID}
	if ec.Automation != nil {
		actionData["automation_id"] = ec.Automation.ID
		actionData["trigger_type"] = ec.Automation.TriggerType
	}
	if ec.ExecutionID != "" {
		actionData["execution_id"] = ec.ExecutionID
	}
	if ec.Generated != nil {
		actionData["generated"] = ec.Generated.Content
	}

	n, err := e.notifications.Create(ctx, scope, NotificationInput{
		Title:      title,
		Message:    renderTemplate(stringParam(p, "message"), vars),
		Type:       stringParam(p, "type"),
		Route:      route,
		ActionData: actionData,
	})
	if err != nil {
		return nil, "", err
	}
	return map[string]interface{}{"notification_id": n.ID}, "notification created", nil
}

func (e *ActionExecutor) updateProjectStatus(ctx context.Context, scope *store.Scope, p map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, string, error) {
	target := stringParam(p, "status")
	if target == "" {
		return nil, "", fmt.Errorf("%w: status", ErrMissingParameter)
	}
	project := ec.Project
	if id := stringParam(p, "project_id"); id != "" && (project == nil || project.ID != id) {
		var loaded models.Project
		if err := scope.First(ctx, &loaded, id); err != nil {
			return nil, "", fmt.Errorf("load project: %w", err)
		}
		project = &loaded
	}
	if project == nil {
		return nil, "", fmt.Errorf("%w: project", ErrMissingParameter)
	}
	if project.Status == target {
		return map[string]interface{}{"project_id": project.ID, "status": target}, "project already " + target, nil
	}
	if !CanTransitionProject(project.Status, target) {
		return nil, "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, project.Status, target)
	}

	from := project.Status
	res := scope.Model(ctx, &models.Project{}).
		Where("id = ? AND status = ?", project.ID, from).
		Updates(map[string]interface{}{"status": target, "updated_at": e.now()})
	if res.Error != nil {
		return nil, "", fmt.Errorf("update project status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, "", fmt.Errorf("%w: project changed concurrently", ErrInvalidTransition)
	}
	project.Status = target
	return map[string]interface{}{"project_id": project.ID, "from": from, "status": target}, "project moved to " + target, nil
}

// ClientReport summarises one client's activity.
type ClientReport struct {
	ClientID        string         `json:"client_id"`
	ClientName      string         `json:"client_name"`
	ProjectsByState map[string]int `json:"projects_by_status"`
	TotalProjects   int            `json:"total_projects"`
	HoursLogged     float64        `json:"hours_logged"`
	AmountBilled    float64        `json:"amount_billed"`
	AmountPaid      float64        `json:"amount_paid"`
	AmountOpen      float64        `json:"amount_open"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

func (e *ActionExecutor) buildClientReport(ctx context.Context, scope *store.Scope, client *models.Client) (*ClientReport, error) {
	report := &ClientReport{
		ClientID:        client.ID,
		ClientName:      client.Name,
		ProjectsByState: map[string]int{},
		GeneratedAt:     e.now(),
	}

	var projects []models.Project
	if err := scope.Query(ctx).Where("client_id = ?", client.ID).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	projectIDs := make([]string, 0, len(projects))
	for _, pr := range projects {
		report.ProjectsByState[pr.Status]++
		projectIDs = append(projectIDs, pr.ID)
	}
	report.TotalProjects = len(projects)

	taskQuery := scope.Model(ctx, &models.Task{})
	if len(projectIDs) > 0 {
		taskQuery = taskQuery.Where("client_id = ? OR project_id IN ?", client.ID, projectIDs)
	} else {
		taskQuery = taskQuery.Where("client_id = ?", client.ID)
	}
	var hours float64
	if err := taskQuery.Select("COALESCE(SUM(actual_hours), 0)").Scan(&hours).Error; err != nil {
		return nil, fmt.Errorf("sum hours: %w", err)
	}
	report.HoursLogged = hours

	var invoices []models.Invoice
	if err := scope.Query(ctx).Where("client_id = ?", client.ID).Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	for _, inv := range invoices {
		switch inv.Status {
		case "draft", "cancelled":
			continue
		case "paid":
			report.AmountPaid += inv.Amount
		default:
			report.AmountOpen += inv.Amount
		}
		report.AmountBilled += inv.Amount
	}
	return report, nil
}

func (e *ActionExecutor) generateReport(ctx context.Context, scope *store.Scope, p map[string]interface{}, ec *ExecutionContext, vars map[string]string) (map[string]interface{}, string, error) {
	if ec.Client == nil {
		return nil, "", fmt.Errorf("%w: client", ErrMissingParameter)
	}
	if e.notifications == nil {
		return nil, "", errors.New("notification service not configured")
	}
	report, err := e.buildClientReport(ctx, scope, ec.Client)
	if err != nil {
		return nil, "", err
	}

	title := renderTemplate(stringParam(p, "title"), vars)
	if title == "" {
		title = "Report for " + ec.Client.Name
	}
	states := make([]string, 0, len(report.ProjectsByState))
	for s, n := range report.ProjectsByState {
		states = append(states, fmt.Sprintf("%d %s", n, s))
	}
	sort.Strings(states)
	message := fmt.Sprintf("%d projects (%s), %s hours logged, %s billed, %s paid, %s open.",
		report.TotalProjects, strings.Join(states, ", "), formatNumber(report.HoursLogged),
		formatNumber(report.AmountBilled), formatNumber(report.AmountPaid), formatNumber(report.AmountOpen))
	if report.TotalProjects == 0 {
		message = fmt.Sprintf("No projects yet. %s billed, %s paid.", formatNumber(report.AmountBilled), formatNumber(report.AmountPaid))
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, "", err
	}
	var reportMap map[string]interface{}
	_ = json.Unmarshal(raw, &reportMap)

	n, err := e.notifications.Create(ctx, scope, NotificationInput{
		Title:      title,
		Message:    message,
		Type:       models.NotificationInfo,
		Route:      "/clients/" + ec.Client.ID,
		ActionData: map[string]interface{}{"report": reportMap},
	})
	if err != nil {
		return nil, "", err
	}
	return map[string]interface{}{"notification_id": n.ID, "report": reportMap}, "report generated", nil
}

func (e *ActionExecutor) createProposal(ctx context.Context, scope *store.Scope, p map[string]interface{}, ec *ExecutionContext, vars map[string]string) (map[string]interface{}, string, error) {
	if ec.Client == nil {
		return nil, "", fmt.Errorf("%w: client", ErrMissingParameter)
	}
	title := renderTemplate(stringParam(p, "title"), vars)
	if title == "" {
		title = "Proposal for " + ec.Client.Name
	}
	proposal := &models.Proposal{
		ClientID: ec.Client.ID,
		Title:    title,
		Content:  renderTemplate(stringParam(p, "content"), vars),
		Status:   "draft",
	}
	if amount, ok := toFloat(p["amount"]); ok {
		proposal.Amount = amount
	}
	if g := ec.Generated; g != nil && !g.Degraded() {
		if price, ok := toFloat(g.Content["recommended_price"]); ok && price > 0 {
			proposal.Amount = price
		}
		if b, err := json.MarshalIndent(g.Content, "", "  "); err == nil {
			proposal.Content = strings.TrimSpace(proposal.Content + "\n\n" + string(b))
		}
	}
	if ec.Project != nil {
		proposal.ProjectID = &ec.Project.ID
	}
	if err := scope.Create(ctx, proposal); err != nil {
		return nil, "", fmt.Errorf("create proposal: %w", err)
	}
	return map[string]interface{}{"proposal_id": proposal.ID, "amount": proposal.Amount}, "draft proposal created", nil
}

func entityRoute(ec *ExecutionContext) string {
	switch {
	case ec.Project != nil:
		return "/projects/" + ec.Project.ID
	case ec.Client != nil:
		return "/clients/" + ec.Client.ID
	default:
		return "/automations"
	}
}

func stringParam(p map[string]interface{}, key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

// templateVars flattens the payload ("client.name" -> client_name) and adds
// the well-known names from the loaded rows.
func templateVars(ec *ExecutionContext) map[string]string {
	vars := map[string]string{}
	flattenVars("", ec.Payload, vars)
	if ec.Client != nil {
		vars["client_name"] = ec.Client.Name
		vars["client_email"] = ec.Client.Email
		vars["client_company"] = ec.Client.Company
	}
	if ec.Project != nil {
		vars["project_name"] = ec.Project.Name
		if ec.Project.Deadline != nil {
			vars["deadline"] = ec.Project.Deadline.Format("2006-01-02")
		}
	}
	if ec.Profile != nil {
		vars["freelancer_name"] = ec.Profile.DisplayName()
	}
	return vars
}

func flattenVars(prefix string, m map[string]interface{}, out map[string]string) {
	for k, v := range m {
		name := k
		if prefix != "" {
			name = prefix + "_" + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flattenVars(name, val, out)
		case string:
			out[name] = val
		case bool:
			out[name] = strconv.FormatBool(val)
		case nil:
		default:
			if f, ok := toFloat(val); ok {
				out[name] = formatNumber(f)
			}
		}
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// renderTemplate replaces {{name}} placeholders; unknown ones are left as is.
func renderTemplate(s string, vars map[string]string) string {
	if s == "" || !strings.Contains(s, "{{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func textToHTML(body string) string {
	paragraphs := strings.Split(html.EscapeString(body), "\n\n")
	for i, para := range paragraphs {
		paragraphs[i] = "<p>" + strings.ReplaceAll(para, "\n", "<br>") + "</p>"
	}
	return strings.Join(paragraphs, "\n")
}
