package services

import (
	"errors"
	"testing"
	"time"

	"taskelio/internal/config"
	"taskelio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionProject(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"planning", "active", true},
		{"planning", "cancelled", true},
		{"planning", "completed", false},
		{"active", "on_hold", true},
		{"active", "completed", true},
		{"active", "planning", false},
		{"on_hold", "active", true},
		{"on_hold", "completed", false},
		{"completed", "active", false},
		{"cancelled", "active", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionProject(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestRenderTemplate(t *testing.T) {
	ec := &ExecutionContext{
		Client:  &models.Client{Name: "Acme"},
		Profile: &models.Profile{FullName: "Ada"},
		Payload: map[string]interface{}{
			"invoice":    map[string]interface{}{"number": "INV-1", "amount": 1200.5},
			"percentage": 80.0,
			"urgent":     true,
		},
	}
	vars := templateVars(ec)
	assert.Equal(t, "Acme owes INV-1 (1200.5) to Ada at 80% true {{unknown}}",
		renderTemplate("{{client_name}} owes {{invoice_number}} ({{invoice_amount}}) to {{freelancer_name}} at {{percentage}}% {{urgent}} {{unknown}}", vars))
	assert.Equal(t, "plain", renderTemplate("plain", vars))
}

func newExecutorEnv(t *testing.T) (*testEnv, *models.AutomationConfig) {
	env := newTestEnv(t)
	a, err := env.automations.Create(env.ctx(), env.scope, &AutomationRequest{
		Name: "exec", TriggerType: TriggerProjectStarted, Actions: []ActionSpec{notifyAction("x")},
	})
	require.NoError(t, err)
	return env, a
}

func TestActionExecutor_UpdateProjectStatus(t *testing.T) {
	env, a := newExecutorEnv(t)
	ctx := env.ctx()
	p := env.createProject(t, &models.Project{Name: "Site", Status: "planning"})

	action := ActionSpec{Type: ActionUpdateProjectStatus, Parameters: map[string]interface{}{"status": "active"}}
	res, err := env.executor.Execute(ctx, env.scope, action, &ExecutionContext{Automation: a, Project: p, EntityID: p.ID})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "planning", res.Data["from"])

	var stored models.Project
	require.NoError(t, env.scope.First(ctx, &stored, p.ID))
	assert.Equal(t, "active", stored.Status)

	action.Parameters["status"] = "planning"
	res, err = env.executor.Execute(ctx, env.scope, action, &ExecutionContext{Automation: a, Project: &stored, EntityID: p.ID})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	// stale in-memory status loses the conditional update
	stale := stored
	stale.Status = "on_hold"
	require.NoError(t, env.scope.Model(ctx, &models.Project{}).Where("id = ?", p.ID).Update("status", "cancelled").Error)
	action.Parameters["status"] = "active"
	_, err = env.executor.Execute(ctx, env.scope, action, &ExecutionContext{Automation: a, Project: &stale, EntityID: p.ID})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestActionExecutor_NotImplementedAndUnknown(t *testing.T) {
	env, a := newExecutorEnv(t)
	for _, kind := range []string{ActionCreateInvoice, ActionSendWhatsApp} {
		res, err := env.executor.Execute(env.ctx(), env.scope, ActionSpec{Type: kind}, &ExecutionContext{Automation: a, EntityID: "e1"})
		assert.ErrorIs(t, err, ErrActionNotImplemented, kind)
		assert.False(t, res.Success)
	}
	_, err := env.executor.Execute(env.ctx(), env.scope, ActionSpec{Type: "fax"}, &ExecutionContext{Automation: a})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestActionExecutor_FailedSideEffectReleasesClaim(t *testing.T) {
	env, a := newExecutorEnv(t)
	ctx := env.ctx()
	client := env.createClient(t, "Acme", testNow)
	action := ActionSpec{Type: ActionSendEmail, Parameters: map[string]interface{}{"subject": "Hi {{client_name}}", "body": "Hello"}}
	ec := &ExecutionContext{Automation: a, Client: client, EntityID: client.ID}

	env.sender.err = errors.New("resend: 503")
	_, err := env.executor.Execute(ctx, env.scope, action, ec)
	require.Error(t, err)

	var keys int64
	require.NoError(t, env.db.Model(&models.AutomationDedupKey{}).Count(&keys).Error)
	assert.Zero(t, keys)

	env.sender.err = nil
	res, err := env.executor.Execute(ctx, env.scope, action, ec)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Skipped)
	assert.Equal(t, "Hi Acme", res.Data["subject"])
	assert.Equal(t, "template", res.Data["source"])

	res, err = env.executor.Execute(ctx, env.scope, action, ec)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, env.sender.count())
}

func TestActionExecutor_PerActionDedupWindow(t *testing.T) {
	env, a := newExecutorEnv(t)
	ctx := env.ctx()
	action := ActionSpec{Type: ActionCreateNotification, Parameters: map[string]interface{}{
		"title": "daily", "dedup_window_minutes": 1440.0,
	}}
	ec := &ExecutionContext{Automation: a, EntityID: "p1"}

	_, err := env.executor.Execute(ctx, env.scope, action, ec)
	require.NoError(t, err)

	env.dedup.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	res, err := env.executor.Execute(ctx, env.scope, action, ec)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	env.dedup.now = func() time.Time { return testNow.Add(25 * time.Hour) }
	res, err = env.executor.Execute(ctx, env.scope, action, ec)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestActionExecutor_SendEmailUsesGeneratedDraft(t *testing.T) {
	env, a := newExecutorEnv(t)
	fc := &fakeCompleter{reply: `{"subject":"Quick check-in","body":"Hi Acme,\n\nHow are things?"}`}
	env.executor.generator = NewContentGeneratorWithClient(fc, config.OpenAIConfig{Model: "gpt-4o-mini"}, nil, quietLogger())
	client := env.createClient(t, "Acme", testNow)

	action := ActionSpec{Type: ActionSendEmail, Parameters: map[string]interface{}{
		"ai_task": AITaskEmailDraft, "purpose": "check in", "subject": "fallback", "body": "fallback body",
	}}
	res, err := env.executor.Execute(env.ctx(), env.scope, action, &ExecutionContext{Automation: a, Client: client, EntityID: client.ID})
	require.NoError(t, err)
	assert.Equal(t, "generated", res.Data["source"])
	require.NotNil(t, res.Generated)
	assert.Equal(t, 1, fc.calls)
	assert.Contains(t, fc.last.Messages[1].Content, "check in")

	sent := env.sender.sent[0]
	assert.Equal(t, "Quick check-in", sent.Subject)
	assert.Equal(t, "<p>Hi Acme,</p>\n<p>How are things?</p>", sent.HTML)

	// a deduplicated action never reaches the generator
	res, err = env.executor.Execute(env.ctx(), env.scope, action, &ExecutionContext{Automation: a, Client: client, EntityID: client.ID})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, fc.calls)
}

func TestActionExecutor_CreateTaskAndCalendarLink(t *testing.T) {
	env, a := newExecutorEnv(t)
	ctx := env.ctx()
	client := env.createClient(t, "Acme", testNow)
	p := env.createProject(t, &models.Project{Name: "Site", Status: "active", ClientID: &client.ID})

	res, err := env.executor.Execute(ctx, env.scope, ActionSpec{Type: ActionCreateTask, Parameters: map[string]interface{}{
		"title": "Plan {{project_name}}", "due_in_days": 2.0,
	}}, &ExecutionContext{Automation: a, Project: p, EntityID: p.ID})
	require.NoError(t, err)

	var task models.Task
	require.NoError(t, env.scope.First(ctx, &task, res.Data["task_id"].(string)))
	assert.Equal(t, "Plan Site", task.Title)
	assert.Equal(t, "medium", task.Priority)
	require.NotNil(t, task.ClientID)
	assert.Equal(t, client.ID, *task.ClientID)
	require.NotNil(t, task.AutomationID)
	require.NotNil(t, task.DueDate)
	assert.True(t, task.DueDate.Equal(testNow.Add(48*time.Hour)))

	_, err = env.executor.Execute(ctx, env.scope, ActionSpec{Type: ActionCreateTask}, &ExecutionContext{Automation: a, EntityID: "other"})
	assert.ErrorIs(t, err, ErrMissingParameter)

	res, err = env.executor.Execute(ctx, env.scope, ActionSpec{Type: ActionCreateCalendarLink, Parameters: map[string]interface{}{
		"duration_minutes": 45.0,
	}}, &ExecutionContext{Automation: a, Client: client, EntityID: client.ID})
	require.NoError(t, err)
	var ev models.CalendarEvent
	require.NoError(t, env.scope.First(ctx, &ev, res.Data["event_id"].(string)))
	assert.Equal(t, "Meeting with Acme", ev.Title)
	assert.Equal(t, 45*time.Minute, ev.EndTime.Sub(ev.StartTime))
	assert.Equal(t, ev.ExternalLink, res.Data["link"])
	assert.Contains(t, ev.ExternalLink, "action=TEMPLATE")
}

func TestActionExecutor_GenerateReportAndProposal(t *testing.T) {
	env, a := newExecutorEnv(t)
	ctx := env.ctx()
	client := env.createClient(t, "Acme", testNow)
	p1 := env.createProject(t, &models.Project{Name: "A", Status: "active", ClientID: &client.ID})
	env.createProject(t, &models.Project{Name: "B", Status: "completed", ClientID: &client.ID})
	env.addTask(t, &models.Task{ProjectID: &p1.ID, ActualHours: 3.5})
	env.addTask(t, &models.Task{ClientID: &client.ID, ActualHours: 1})
	for _, inv := range []*models.Invoice{
		{ClientID: client.ID, Amount: 1000, Status: "paid"},
		{ClientID: client.ID, Amount: 250, Status: "sent"},
		{ClientID: client.ID, Amount: 99, Status: "draft"},
	} {
		require.NoError(t, env.scope.Create(ctx, inv))
	}

	res, err := env.executor.Execute(ctx, env.scope, ActionSpec{Type: ActionGenerateReport}, &ExecutionContext{Automation: a, Client: client, EntityID: client.ID})
	require.NoError(t, err)
	report := res.Data["report"].(map[string]interface{})
	assert.Equal(t, 4.5, report["hours_logged"])
	assert.Equal(t, 1250.0, report["amount_billed"])
	assert.Equal(t, 1000.0, report["amount_paid"])
	assert.Equal(t, 250.0, report["amount_open"])

	notes, _, err := env.notifications.List(ctx, env.scope, NotificationListRequest{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Report for Acme", notes[0].Title)
	assert.Equal(t, "2 projects (1 active, 1 completed), 4.5 hours logged, 1250 billed, 1000 paid, 250 open.", notes[0].Message)

	res, err = env.executor.Execute(ctx, env.scope, ActionSpec{Type: ActionCreateProposal, Parameters: map[string]interface{}{
		"amount": 1500.0, "content": "Scope for {{client_name}}",
	}}, &ExecutionContext{Automation: a, Client: client, EntityID: client.ID})
	require.NoError(t, err)
	var prop models.Proposal
	require.NoError(t, env.scope.First(ctx, &prop, res.Data["proposal_id"].(string)))
	assert.Equal(t, "Proposal for Acme", prop.Title)
	assert.Equal(t, "Scope for Acme", prop.Content)
	assert.Equal(t, 1500.0, prop.Amount)
	assert.Equal(t, "draft", prop.Status)

	_, err = env.executor.Execute(ctx, env.scope, ActionSpec{Type: ActionGenerateReport}, &ExecutionContext{Automation: a})
	assert.ErrorIs(t, err, ErrMissingParameter)
}
