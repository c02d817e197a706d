package webapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/crypto/bcrypt"

	"teletext/internal/ideagen"
	"teletext/internal/store"
)

const sessionTTL = 7 * 24 * time.Hour

// Identity is what the session collaborator supplies for the acting caller.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

type identityKey struct{}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

type Server struct {
	store *store.Store
	jobs  *Runner
	md    goldmark.Markdown
	pdf   PagePDFRenderer
}

func NewServer(st *store.Store, jobs *Runner) http.Handler {
	return newServer(st, jobs, NewChromiumPDFRenderer())
}

func newServer(st *store.Store, jobs *Runner, pdf PagePDFRenderer) http.Handler {
	s := &Server{
		store: st,
		jobs:  jobs,
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		pdf:   pdf,
	}

	r := chi.NewRouter()
	r.Post("/api/register", s.handleRegister)
	r.Post("/api/login", s.handleLogin)

	r.With(s.attachIdentity).Post("/api/ideas", s.handleSubmitIdea)
	r.Get("/api/ideas", s.handleListIdeas)
	r.Get("/api/ideas/{id}", s.handleGetIdea)
	r.Get("/api/ideas/{id}/report", s.handleIdeaReport)
	r.Get("/api/ideas/{id}/pdf", s.handleIdeaPDF)
	r.Get("/api/ideas/{id}/comments", s.handleListComments)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/api/ideas/{id}/votes", s.handleVote)
		r.Post("/api/ideas/{id}/comments", s.handleAddComment)
	})

	r.Get("/pages/{page}", s.handlePage)
	r.Get("/", s.handleIndex)
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// --- identity ---

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" || len(c.Password) < 8 {
		writeError(w, http.StatusBadRequest, "username and a password of at least 8 characters are required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user, err := s.store.CreateUser(c.Username, string(hash), "member")
	if errors.Is(err, store.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	sess, err := s.store.CreateSession(user.UserID, user.Username, user.Role, sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": sess.Token, "userId": user.UserID, "username": user.Username, "role": user.Role})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	user, err := s.store.GetUserByUsername(c.Username)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(c.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	sess, err := s.store.CreateSession(user.UserID, user.Username, user.Role, sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": sess.Token, "userId": user.UserID, "username": user.Username, "role": user.Role})
}

// attachIdentity resolves a Bearer token when one is present but lets
// anonymous callers through. Submissions record the author when known.
func (s *Server) attachIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token != "" {
			if sess, err := s.store.GetSession(token); err == nil {
				id := Identity{UserID: sess.UserID, Username: sess.Username, Role: sess.Role}
				r = r.WithContext(context.WithValue(r.Context(), identityKey{}, id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		sess, err := s.store.GetSession(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		id := Identity{UserID: sess.UserID, Username: sess.Username, Role: sess.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// --- ideas ---

func (s *Server) handleSubmitIdea(w http.ResponseWriter, r *http.Request) {
	var raw ideagen.RawIdeaInput
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	for field, v := range map[string]string{
		"title":            raw.Title,
		"shortDescription": raw.ShortDescription,
		"category":         raw.Category,
		"problemSolved":    raw.ProblemSolved,
	} {
		if strings.TrimSpace(v) == "" {
			writeError(w, http.StatusBadRequest, field+" is required")
			return
		}
	}

	authorID := ""
	if id, ok := identityFrom(r.Context()); ok {
		authorID = id.UserID
	}
	idea, err := s.store.CreateIdea(raw, authorID)
	if err != nil {
		log.Printf("create idea: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store idea")
		return
	}

	// The pipeline runs in the background; the submitter gets an immediate
	// processing acknowledgment and polls the idea status afterwards.
	s.jobs.Enqueue(ideagen.RequestEnvelope{
		IdeaID:     idea.IdeaID,
		PageNumber: idea.PageNumber,
		Raw:        raw,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         idea.IdeaID,
		"pageNumber": idea.PageNumber,
		"status":     store.StatusProcessing,
	})
}

func (s *Server) handleListIdeas(w http.ResponseWriter, r *http.Request) {
	ideas, err := s.store.ListIdeas(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list ideas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ideas": ideas})
}

func (s *Server) getIdea(w http.ResponseWriter, r *http.Request) (store.Idea, bool) {
	idea, err := s.store.GetIdea(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "idea not found")
		return store.Idea{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load idea")
		return store.Idea{}, false
	}
	return idea, true
}

func (s *Server) handleGetIdea(w http.ResponseWriter, r *http.Request) {
	idea, ok := s.getIdea(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, idea)
}

func (s *Server) handleIdeaReport(w http.ResponseWriter, r *http.Request) {
	idea, ok := s.getIdea(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(idea.ReportMarkdown) == "" {
		writeError(w, http.StatusNotFound, "report not ready")
		return
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(idea.ReportMarkdown), &buf); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleIdeaPDF(w http.ResponseWriter, r *http.Request) {
	if s.pdf == nil {
		writeError(w, http.StatusServiceUnavailable, "pdf renderer unavailable")
		return
	}
	idea, ok := s.getIdea(w, r)
	if !ok {
		return
	}
	if idea.Status != store.StatusPublished {
		writeError(w, http.StatusNotFound, "page not published")
		return
	}
	pdf, err := s.pdf.Render(r.Context(), idea.ContentHTML)
	if err != nil {
		log.Printf("render pdf idea=%s: %v", idea.IdeaID, err)
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="page-`+strconv.Itoa(idea.PageNumber)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// --- votes / comments ---

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	idea, ok := s.getIdea(w, r)
	if !ok {
		return
	}
	var body struct {
		Value int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	id, _ := identityFrom(r.Context())
	if err := s.store.AddVote(idea.IdeaID, id.UserID, body.Value); err != nil {
		if errors.Is(err, store.ErrAlreadyVoted) {
			writeError(w, http.StatusConflict, "already voted")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record vote")
		return
	}
	total, err := s.store.VoteTotal(idea.IdeaID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to total votes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ideaId": idea.IdeaID, "votes": total})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	idea, ok := s.getIdea(w, r)
	if !ok {
		return
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(body.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}
	id, _ := identityFrom(r.Context())
	comment, err := s.store.AddComment(idea.IdeaID, id.UserID, id.Username, body.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store comment")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	idea, ok := s.getIdea(w, r)
	if !ok {
		return
	}
	comments, err := s.store.ListComments(idea.IdeaID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// --- teletext pages ---

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be a number")
		return
	}
	if page == store.FirstIdeaPage-1 {
		s.handleIndex(w, r)
		return
	}
	idea, err := s.store.GetIdeaByPage(page)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such page")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load page")
		return
	}
	if idea.Status != store.StatusPublished {
		writeError(w, http.StatusNotFound, "page not published")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(idea.ContentHTML))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ideas, err := s.store.ListIdeas(store.StatusPublished)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list ideas")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderIndexPage(ideas)))
}
