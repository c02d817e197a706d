// Package store persists ideas, users, votes, comments, and sessions on
// SQLite. The pipeline's write obligations are exactly three: an idea is
// created as "processing", and settles exactly once to "published" (with
// rendered content) or "draft" (fallback).
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"teletext/internal/ideagen"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrAlreadyVoted  = errors.New("already voted")
)

const (
	StatusProcessing = "processing"
	StatusPublished  = "published"
	StatusDraft      = "draft"
)

// Page 100 is the board index; idea pages start at 101.
const FirstIdeaPage = 101

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id       TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'member',
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	username   TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL,
	expires_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ideas (
	idea_id              TEXT PRIMARY KEY,
	page_number          INTEGER NOT NULL UNIQUE,
	author_id            TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'processing',
	title                TEXT NOT NULL,
	short_description    TEXT NOT NULL,
	category             TEXT NOT NULL,
	problem_solved       TEXT NOT NULL,
	technologies         TEXT NOT NULL DEFAULT '[]',
	platform             TEXT NOT NULL DEFAULT '',
	target_segment       TEXT NOT NULL DEFAULT '',
	monetization         TEXT NOT NULL DEFAULT '[]',
	target_markets       TEXT NOT NULL DEFAULT '[]',
	regulations          TEXT NOT NULL DEFAULT '[]',
	compliance_notes     TEXT NOT NULL DEFAULT '',
	unique_value         TEXT NOT NULL DEFAULT '',
	implementation_level TEXT NOT NULL DEFAULT '',
	repository_link      TEXT NOT NULL DEFAULT '',
	competitors          TEXT NOT NULL DEFAULT '',
	team_size            TEXT NOT NULL DEFAULT '',
	timeline             TEXT NOT NULL DEFAULT '',
	budget               TEXT NOT NULL DEFAULT '',
	open_questions       TEXT NOT NULL DEFAULT '',
	score                REAL NOT NULL DEFAULT 0,
	recommendation       TEXT NOT NULL DEFAULT '',
	content_html         TEXT NOT NULL DEFAULT '',
	report_markdown      TEXT NOT NULL DEFAULT '',
	failure_reason       TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS votes (
	idea_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	value   INTEGER NOT NULL,
	PRIMARY KEY (idea_id, user_id)
);

CREATE TABLE IF NOT EXISTS comments (
	comment_id TEXT PRIMARY KEY,
	idea_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	username   TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

type User struct {
	UserID       string `db:"user_id" json:"userId"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         string `db:"role" json:"role"`
	CreatedAt    string `db:"created_at" json:"createdAt"`
}

type Session struct {
	Token     string `db:"token" json:"token"`
	UserID    string `db:"user_id" json:"userId"`
	Username  string `db:"username" json:"username"`
	Role      string `db:"role" json:"role"`
	ExpiresAt string `db:"expires_at" json:"-"`
}

type Comment struct {
	CommentID string `db:"comment_id" json:"id"`
	IdeaID    string `db:"idea_id" json:"ideaId"`
	UserID    string `db:"user_id" json:"userId"`
	Username  string `db:"username" json:"username"`
	Body      string `db:"body" json:"body"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

// Idea is the stored record with list fields already deserialized.
type Idea struct {
	IdeaID         string               `json:"id"`
	PageNumber     int                  `json:"pageNumber"`
	AuthorID       string               `json:"authorId,omitempty"`
	Status         string               `json:"status"`
	Input          ideagen.RawIdeaInput `json:"input"`
	Score          float64              `json:"score"`
	Recommendation string               `json:"recommendation,omitempty"`
	ContentHTML    string               `json:"-"`
	ReportMarkdown string               `json:"-"`
	FailureReason  string               `json:"failureReason,omitempty"`
	Votes          int                  `json:"votes"`
	CreatedAt      string               `json:"createdAt"`
	UpdatedAt      string               `json:"updatedAt"`
}

type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// --- users / sessions ---

func (s *Store) CreateUser(username, passwordHash, role string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{
		UserID:       uuid.NewString(),
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now(),
	}
	_, err := s.db.Exec(`INSERT INTO users (user_id, username, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.UserID, u.Username, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(username string) (User, error) {
	var u User
	err := s.db.Get(&u, `SELECT user_id, username, password_hash, role, created_at FROM users WHERE username = ?`, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) CreateSession(userID, username, role string, ttl time.Duration) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Role:      role,
		ExpiresAt: time.Now().UTC().Add(ttl).Format(time.RFC3339Nano),
	}
	_, err := s.db.Exec(`INSERT INTO sessions (token, user_id, username, role, expires_at) VALUES (?, ?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.Username, sess.Role, sess.ExpiresAt)
	return sess, err
}

// GetSession returns ErrNotFound for unknown or expired tokens.
func (s *Store) GetSession(token string) (Session, error) {
	var sess Session
	err := s.db.Get(&sess, `SELECT token, user_id, username, role, expires_at FROM sessions WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	exp, err := time.Parse(time.RFC3339Nano, sess.ExpiresAt)
	if err != nil || time.Now().UTC().After(exp) {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// --- ideas ---

func marshalList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(v string) []string {
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}

// CreateIdea inserts a new idea in the processing state and reserves the next
// free teletext page number for it.
func (s *Store) CreateIdea(raw ideagen.RawIdeaInput, authorID string) (Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxPage sql.NullInt64
	if err := s.db.Get(&maxPage, `SELECT MAX(page_number) FROM ideas`); err != nil {
		return Idea{}, err
	}
	page := FirstIdeaPage
	if maxPage.Valid && int(maxPage.Int64) >= FirstIdeaPage {
		page = int(maxPage.Int64) + 1
	}

	ts := now()
	idea := Idea{
		IdeaID:     uuid.NewString(),
		PageNumber: page,
		AuthorID:   authorID,
		Status:     StatusProcessing,
		Input:      raw,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	_, err := s.db.Exec(`INSERT INTO ideas (
		idea_id, page_number, author_id, status,
		title, short_description, category, problem_solved,
		technologies, platform, target_segment, monetization, target_markets,
		regulations, compliance_notes, unique_value, implementation_level,
		repository_link, competitors, team_size, timeline, budget, open_questions,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		idea.IdeaID, idea.PageNumber, idea.AuthorID, idea.Status,
		raw.Title, raw.ShortDescription, raw.Category, raw.ProblemSolved,
		marshalList(raw.Technologies), raw.Platform, raw.TargetSegment,
		marshalList(raw.Monetization), marshalList(raw.TargetMarkets),
		marshalList(raw.Regulations), raw.ComplianceNotes, raw.UniqueValue,
		raw.ImplementationLevel, raw.RepositoryLink, raw.Competitors,
		raw.TeamSize, raw.Timeline, raw.Budget, raw.OpenQuestions,
		idea.CreatedAt, idea.UpdatedAt)
	if err != nil {
		return Idea{}, err
	}
	return idea, nil
}

const ideaColumns = `idea_id, page_number, author_id, status,
	title, short_description, category, problem_solved,
	technologies, platform, target_segment, monetization, target_markets,
	regulations, compliance_notes, unique_value, implementation_level,
	repository_link, competitors, team_size, timeline, budget, open_questions,
	score, recommendation, content_html, report_markdown, failure_reason,
	created_at, updated_at`

func (s *Store) scanIdea(row *sql.Row) (Idea, error) {
	var idea Idea
	var raw ideagen.RawIdeaInput
	var technologies, monetization, targetMarkets, regulations string
	err := row.Scan(
		&idea.IdeaID, &idea.PageNumber, &idea.AuthorID, &idea.Status,
		&raw.Title, &raw.ShortDescription, &raw.Category, &raw.ProblemSolved,
		&technologies, &raw.Platform, &raw.TargetSegment, &monetization, &targetMarkets,
		&regulations, &raw.ComplianceNotes, &raw.UniqueValue, &raw.ImplementationLevel,
		&raw.RepositoryLink, &raw.Competitors, &raw.TeamSize, &raw.Timeline, &raw.Budget, &raw.OpenQuestions,
		&idea.Score, &idea.Recommendation, &idea.ContentHTML, &idea.ReportMarkdown, &idea.FailureReason,
		&idea.CreatedAt, &idea.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Idea{}, ErrNotFound
	}
	if err != nil {
		return Idea{}, err
	}
	raw.Technologies = unmarshalList(technologies)
	raw.Monetization = unmarshalList(monetization)
	raw.TargetMarkets = unmarshalList(targetMarkets)
	raw.Regulations = unmarshalList(regulations)
	idea.Input = raw
	votes, err := s.voteTotal(idea.IdeaID)
	if err != nil {
		return Idea{}, err
	}
	idea.Votes = votes
	return idea, nil
}

func (s *Store) GetIdea(ideaID string) (Idea, error) {
	row := s.db.QueryRow(`SELECT `+ideaColumns+` FROM ideas WHERE idea_id = ?`, ideaID)
	return s.scanIdea(row)
}

func (s *Store) GetIdeaByPage(page int) (Idea, error) {
	row := s.db.QueryRow(`SELECT `+ideaColumns+` FROM ideas WHERE page_number = ?`, page)
	return s.scanIdea(row)
}

// IdeaSummary is the index-page projection of an idea.
type IdeaSummary struct {
	IdeaID     string  `db:"idea_id" json:"id"`
	PageNumber int     `db:"page_number" json:"pageNumber"`
	Title      string  `db:"title" json:"title"`
	Category   string  `db:"category" json:"category"`
	Status     string  `db:"status" json:"status"`
	Score      float64 `db:"score" json:"score"`
}

func (s *Store) ListIdeas(status string) ([]IdeaSummary, error) {
	var out []IdeaSummary
	query := `SELECT idea_id, page_number, title, category, status, score FROM ideas`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY page_number`
	if err := s.db.Select(&out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// PublishIdea records a successful pipeline run: rendered content, score,
// recommendation, and the published status. It only applies to an idea still
// in the processing state so a run can never settle twice.
func (s *Store) PublishIdea(ideaID, contentHTML, reportMarkdown string, score float64, recommendation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE ideas SET status = ?, content_html = ?, report_markdown = ?, score = ?, recommendation = ?, updated_at = ?
		WHERE idea_id = ? AND status = ?`,
		StatusPublished, contentHTML, reportMarkdown, score, recommendation, now(), ideaID, StatusProcessing)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkIdeaDraft records a failed pipeline run: the idea falls back to the
// draft state with the failure reason, again only from processing.
func (s *Store) MarkIdeaDraft(ideaID, reason, reportMarkdown string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE ideas SET status = ?, failure_reason = ?, report_markdown = ?, updated_at = ?
		WHERE idea_id = ? AND status = ?`,
		StatusDraft, reason, reportMarkdown, now(), ideaID, StatusProcessing)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- votes / comments ---

func (s *Store) AddVote(ideaID, userID string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value > 0 {
		value = 1
	} else {
		value = -1
	}
	_, err := s.db.Exec(`INSERT INTO votes (idea_id, user_id, value) VALUES (?, ?, ?)`, ideaID, userID, value)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrAlreadyVoted
		}
		return err
	}
	return nil
}

func (s *Store) voteTotal(ideaID string) (int, error) {
	var total sql.NullInt64
	if err := s.db.Get(&total, `SELECT SUM(value) FROM votes WHERE idea_id = ?`, ideaID); err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}

func (s *Store) VoteTotal(ideaID string) (int, error) {
	return s.voteTotal(ideaID)
}

func (s *Store) AddComment(ideaID, userID, username, body string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Comment{
		CommentID: uuid.NewString(),
		IdeaID:    ideaID,
		UserID:    userID,
		Username:  username,
		Body:      strings.TrimSpace(body),
		CreatedAt: now(),
	}
	if c.Body == "" {
		return Comment{}, fmt.Errorf("comment body is required")
	}
	_, err := s.db.Exec(`INSERT INTO comments (comment_id, idea_id, user_id, username, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.CommentID, c.IdeaID, c.UserID, c.Username, c.Body, c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (s *Store) ListComments(ideaID string) ([]Comment, error) {
	var out []Comment
	err := s.db.Select(&out, `SELECT comment_id, idea_id, user_id, username, body, created_at FROM comments WHERE idea_id = ? ORDER BY created_at`, ideaID)
	if err != nil {
		return nil, err
	}
	return out, nil
}
