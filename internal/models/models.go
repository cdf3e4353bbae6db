package models

// PromptResponse is the outcome of a grounded chat query.
type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
