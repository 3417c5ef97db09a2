package backend

// CreateSessionResponse is the body of POST /create-session.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// AnalyzeRequest is the body of POST /analyze/{sessionId}.
type AnalyzeRequest struct {
	GitHubURL string `json:"github_url"`
}

// AskRequest is the body of POST /ask/{sessionId}.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries the answer under its primary or fallback field name.
type AskResponse struct {
	Answer  string `json:"answer"`
	Message string `json:"message"`
}
