// Package dialogue holds the conversational layer's static data: suggested
// follow-up actions per intent, direct responses for small talk, and
// fallback phrasing. Pure lookup tables, no I/O.
package dialogue

import "github.com/assura-labs/assura-go/internal/intent"

// SuggestedAction is one quick-action button offered with an answer.
type SuggestedAction struct {
	// Label is the user-visible text.
	Label string `json:"label"`

	// Type tells the frontend how to handle the action.
	Type string `json:"type"`

	// Payload is the action target: a query to send or a route to open.
	Payload string `json:"payload"`
}

// Action types understood by the frontend.
const (
	ActionQuery = "query"
	ActionRoute = "route"
	ActionCall  = "call"
)

// actionsByIntent maps each intent to its suggested follow-ups.
var actionsByIntent = map[string][]SuggestedAction{
	intent.Quote: {
		{Label: "Request a car insurance quote", Type: ActionRoute, Payload: "/quotes/new"},
		{Label: "What affects my premium?", Type: ActionQuery, Payload: "What factors affect my insurance premium?"},
		{Label: "Compare coverage options", Type: ActionQuery, Payload: "What coverage options are available?"},
	},
	intent.Claim: {
		{Label: "File a new claim", Type: ActionRoute, Payload: "/claims/new"},
		{Label: "Check claim status", Type: ActionRoute, Payload: "/claims/status"},
		{Label: "What documents do I need?", Type: ActionQuery, Payload: "What documents are required to file a claim?"},
	},
	intent.Accident: {
		{Label: "Call emergency assistance", Type: ActionCall, Payload: "+1-800-555-0199"},
		{Label: "What to do after an accident", Type: ActionQuery, Payload: "What are the steps to follow after an accident?"},
		{Label: "Request roadside assistance", Type: ActionRoute, Payload: "/assistance/roadside"},
	},
	intent.Coverage: {
		{Label: "What does my policy cover?", Type: ActionQuery, Payload: "What does my policy cover?"},
		{Label: "Check exclusions", Type: ActionQuery, Payload: "What is excluded from my coverage?"},
		{Label: "View my policy", Type: ActionRoute, Payload: "/policies"},
	},
	intent.GeneralInfo: {
		{Label: "Get a quote", Type: ActionRoute, Payload: "/quotes/new"},
		{Label: "File a claim", Type: ActionRoute, Payload: "/claims/new"},
		{Label: "Talk to support", Type: ActionRoute, Payload: "/support"},
	},
}

// directResponses answer small-talk intents without retrieval.
var directResponses = map[string]string{
	intent.Greeting: "Hello! I'm your insurance assistant. I can help you with quotes, claims, coverage questions, and more. How can I help you today?",
	intent.Thanks:   "You're welcome! Is there anything else I can help you with?",
	intent.Goodbye:  "Goodbye! If you have more questions about your insurance, I'm here anytime.",
}

// prefixes are prepended to generated answers for high-urgency intents.
var prefixes = map[string]string{
	intent.Accident: "I'm sorry to hear about the accident. If anyone is injured, please call emergency services first.\n\n",
}

// Fallback is offered when the assistant cannot produce an answer.
const Fallback = "I'm not sure I can help with that directly, but our support team can. " +
	"You can also try rephrasing your question."

// ActionsFor returns the suggested actions for an intent. Unknown and
// small-talk intents fall back to the general set.
func ActionsFor(intentName string) []SuggestedAction {
	if actions, ok := actionsByIntent[intentName]; ok {
		return actions
	}
	return actionsByIntent[intent.GeneralInfo]
}

// DirectResponse returns the canned reply for small-talk intents. ok is
// false when the intent requires retrieval.
func DirectResponse(intentName string) (string, bool) {
	response, ok := directResponses[intentName]
	return response, ok
}

// Prefix returns the urgency preamble for an intent, empty for most.
func Prefix(intentName string) string {
	return prefixes[intentName]
}
