package entity

// BotReply is the narrow contract with the automated responder: reply text
// plus the two intent flags the routing engine acts on.
type BotReply struct {
	Content                     string `json:"content"`
	ShouldEscalate              bool   `json:"should_escalate"`
	ShouldCloseWithSatisfaction bool   `json:"should_close_with_satisfaction"`
}
