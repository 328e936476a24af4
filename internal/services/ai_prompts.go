package services

// Content generation tasks.
const (
	AITaskSentimentAnalysis   = "sentiment_analysis"
	AITaskProposalAnalysis    = "proposal_analysis"
	AITaskPricingOptimization = "pricing_optimization"
	AITaskRiskDetection       = "risk_detection"
	AITaskEmailDraft          = "email_draft"
	AITaskFormGeneration      = "form_generation"
	AITaskMeetingScheduling   = "meeting_scheduling"
)

type aiTaskDef struct {
	system   string
	required []string
	fallback func() map[string]interface{}
}

const jsonOnly = " Respond with a single JSON object only, no prose and no markdown."

var aiTasks = map[string]aiTaskDef{
	AITaskSentimentAnalysis: {
		system: "You analyse client messages for a freelancer. Classify the overall sentiment as positive, neutral or negative, " +
			"estimate your confidence between 0 and 1, list detected emotions, rate urgency as low, medium or high and suggest how to respond." +
			` Keys: sentiment, confidence, emotions, urgency, recommendations, suggested_actions.` + jsonOnly,
		required: []string{"sentiment", "confidence", "emotions", "urgency", "recommendations", "suggested_actions"},
		fallback: func() map[string]interface{} {
			return map[string]interface{}{
				"sentiment":         "neutral",
				"confidence":        0.0,
				"emotions":          []interface{}{},
				"urgency":           "medium",
				"recommendations":   []interface{}{"Review the message manually."},
				"suggested_actions": []interface{}{"reply_personally"},
			}
		},
	},
	AITaskProposalAnalysis: {
		system: "You review freelance proposals. Score the proposal from 0 to 100, list strengths, weaknesses and concrete improvements, " +
			"and estimate the probability of acceptance between 0 and 1." +
			` Keys: score, strengths, weaknesses, improvements, win_probability.` + jsonOnly,
		required: []string{"score", "strengths", "weaknesses", "improvements", "win_probability"},
		fallback: func() map[string]interface{} {
			return map[string]interface{}{
				"score":           0.0,
				"strengths":       []interface{}{},
				"weaknesses":      []interface{}{},
				"improvements":    []interface{}{"Review scope, timeline and pricing manually."},
				"win_probability": 0.0,
			}
		},
	},
	AITaskPricingOptimization: {
		system: "You advise freelancers on pricing. Given the project details and history, recommend a price and an hourly rate, " +
			"give a min/max range, explain your reasoning and list the market factors you considered." +
			` Keys: recommended_price, hourly_rate, price_range, reasoning, market_factors.` + jsonOnly,
		required: []string{"recommended_price", "hourly_rate", "price_range", "reasoning", "market_factors"},
		fallback: func() map[string]interface{} {
			return map[string]interface{}{
				"recommended_price": nil,
				"hourly_rate":       nil,
				"price_range":       map[string]interface{}{"min": nil, "max": nil},
				"reasoning":         "Pricing suggestion unavailable.",
				"market_factors":    []interface{}{},
			}
		},
	},
	AITaskRiskDetection: {
		system: "You detect delivery risks in freelance projects. Rate the overall risk as low, medium or high, list individual risks " +
			"with a severity and a mitigation each, and name early warning signs." +
			` Keys: risk_level, risks, mitigations, warning_signs.` + jsonOnly,
		required: []string{"risk_level", "risks", "mitigations", "warning_signs"},
		fallback: func() map[string]interface{} {
			return map[string]interface{}{
				"risk_level":    "unknown",
				"risks":         []interface{}{},
				"mitigations":   []interface{}{},
				"warning_signs": []interface{}{},
			}
		},
	},
	AITaskEmailDraft: {
		system: "You write short, warm and professional emails on behalf of a freelancer to their client. " +
			"Use the client's name, stay under 150 words and end with a clear next step. Body is plain text." +
			` Keys: subject, body, tone.` + jsonOnly,
		required: []string{"subject", "body"},
		fallback: func() map[string]interface{} {
			return map[string]interface{}{
				"subject": "",
				"body":    "",
				"tone":    "professional",
			}
		},
	},
	AITaskFormGeneration: {
		system: "You design intake forms for freelancers. Produce a title, a description and a list of fields, each with name, label, " +
			"type (text, textarea, email, number, select, date) and required flag." +
			` Keys: title, description, fields.` + jsonOnly,
		required: []string{"title", "fields"},
		fallback: func() map[string]interface{} {
			return map[string]interface{}{
				"title":       "Project intake",
				"description": "",
				"fields": []interface{}{
					map[string]interface{}{"name": "name", "label": "Name", "type": "text", "required": true},
					map[string]interface{}{"name": "email", "label": "Email", "type": "email", "required": true},
					map[string]interface{}{"name": "details", "label": "Project details", "type": "textarea", "required": true},
				},
			}
		},
	},
	AITaskMeetingScheduling: {
		system: "You schedule meetings for a freelancer. Suggest up to three ISO-8601 time slots, a duration in minutes, " +
			"a short agenda and a title." +
			` Keys: suggested_slots, duration_minutes, agenda, title.` + jsonOnly,
		required: []string{"suggested_slots", "duration_minutes", "agenda"},
		fallback: func() map[string]interface{} {
			return map[string]interface{}{
				"suggested_slots":  []interface{}{},
				"duration_minutes": 30.0,
				"agenda":           []interface{}{},
				"title":            "Meeting",
			}
		},
	},
}

// IsValidAITask reports whether task is a known generation task.
func IsValidAITask(task string) bool {
	_, ok := aiTasks[task]
	return ok
}

// AITasks lists the generation tasks.
func AITasks() []string {
	return []string{
		AITaskSentimentAnalysis, AITaskProposalAnalysis, AITaskPricingOptimization,
		AITaskRiskDetection, AITaskEmailDraft, AITaskFormGeneration, AITaskMeetingScheduling,
	}
}
