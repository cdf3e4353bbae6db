package models

const (
	// PromptTemplate combines the user query with retrieved context.
	PromptTemplate = "Refer to the following context to answer this query: %s\n\nContext: %s"

	// ContextSeparator joins retrieved chunks into one context string.
	ContextSeparator = "\n"
)
