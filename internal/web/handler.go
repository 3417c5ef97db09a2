package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/comigor/gitmaster-go/internal/githuburl"
	"github.com/comigor/gitmaster-go/internal/logger"
	"github.com/comigor/gitmaster-go/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var exampleRepositories = []string{
	"https://github.com/vercel/next.js",
	"https://github.com/facebook/react",
	"https://github.com/microsoft/vscode",
}

// Handler serves the landing and chat pages.
type Handler struct {
	analyzer *session.Analyzer
	chats    *session.Registry
}

// New creates a page handler.
func New(analyzer *session.Analyzer, chats *session.Registry) *Handler {
	return &Handler{analyzer: analyzer, chats: chats}
}

// RegisterRoutes registers the page and API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleLanding)
	r.Post("/analyze", h.handleAnalyze)

	r.Route("/chat/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleChat)
		r.Post("/ask", h.handleAsk)
		r.Post("/leave", h.handleLeave)
	})

	r.Get("/api/chat/{sessionID}/messages", h.handleMessages)
}

type landingPage struct {
	RepositoryURL string
	Examples      []string
	Notices       []session.Notice
}

type chatPage struct {
	SessionID  string
	Repository string
	Messages   []session.Message
	Notices    []session.Notice
	AskURL     string
	LeaveURL   string
}

func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "landing.html", landingPage{Examples: exampleRepositories})
}

// handleAnalyze creates a session, analyzes the repository and redirects to its chat.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rawURL := r.PostFormValue("repository_url")

	var notices session.NoticeBuffer
	sess, err := h.analyzer.Start(r.Context(), rawURL, &notices)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, githuburl.ErrEmpty) || errors.Is(err, githuburl.ErrMalformed) {
			status = http.StatusUnprocessableEntity
		}
		render(w, status, "landing.html", landingPage{
			RepositoryURL: rawURL,
			Examples:      exampleRepositories,
			Notices:       notices.Drain(),
		})
		return
	}

	http.Redirect(w, r, chatURL(sess.ID, sess.Repository.URL), http.StatusSeeOther)
}

// handleChat validates the session on first visit and renders the conversation.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	repo := r.URL.Query().Get("repo")

	chat := h.chats.Open(r.Context(), sessionID, repo)
	if repo == "" {
		repo = chat.RepositoryURL()
	}

	page := chatPage{
		SessionID:  sessionID,
		Repository: repo,
		Notices:    chat.DrainNotices(),
	}
	if chat.Validity() == session.ValidityInvalid {
		render(w, http.StatusGone, "invalid.html", page)
		return
	}

	page.Messages = chat.Messages()
	page.AskURL = "/chat/" + url.PathEscape(sessionID) + "/ask"
	page.LeaveURL = "/chat/" + url.PathEscape(sessionID) + "/leave"
	render(w, http.StatusOK, "chat.html", page)
}

// handleAsk submits one question and sends the browser back to the chat page.
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	repo := r.PostFormValue("repo")

	chat := h.chats.Open(r.Context(), sessionID, repo)
	chat.Ask(r.Context(), r.PostFormValue("question"))

	http.Redirect(w, r, chatURL(sessionID, repo), http.StatusSeeOther)
}

// handleLeave is the target of the page's cleanup beacon.
func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	h.chats.End(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

type messagesResponse struct {
	SessionID string            `json:"session_id"`
	Validity  session.Validity  `json:"validity"`
	Messages  []session.Message `json:"messages"`
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	chat, ok := h.chats.Get(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, messagesResponse{
		SessionID: sessionID,
		Validity:  chat.Validity(),
		Messages:  chat.Messages(),
	})
}

func chatURL(sessionID, repo string) string {
	u := "/chat/" + url.PathEscape(sessionID)
	if repo != "" {
		u += "?repo=" + url.QueryEscape(repo)
	}
	return u
}

func render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		logger.L.Error("failed to render page", "page", name, "error", err)
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
