package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"teletext/internal/ideagen"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleInput() ideagen.RawIdeaInput {
	return ideagen.RawIdeaInput{
		Title:            "Smart Compost Bin",
		ShortDescription: "A connected compost bin that tracks decomposition.",
		Category:         "sustainability",
		ProblemSolved:    "Households give up on composting.",
		Technologies:     []string{"moisture sensors", "BLE"},
	}
}

func TestCreateIdeaAllocatesSequentialPages(t *testing.T) {
	s := openTestStore(t)
	first, err := s.CreateIdea(sampleInput(), "")
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	if first.PageNumber != FirstIdeaPage {
		t.Fatalf("first idea must land on page %d, got %d", FirstIdeaPage, first.PageNumber)
	}
	if first.Status != StatusProcessing {
		t.Fatalf("new ideas start processing, got %s", first.Status)
	}
	second, err := s.CreateIdea(sampleInput(), "")
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	if second.PageNumber != FirstIdeaPage+1 {
		t.Fatalf("second idea must land on page %d, got %d", FirstIdeaPage+1, second.PageNumber)
	}
}

func TestIdeaRoundTrip(t *testing.T) {
	s := openTestStore(t)
	created, err := s.CreateIdea(sampleInput(), "author-1")
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	got, err := s.GetIdea(created.IdeaID)
	if err != nil {
		t.Fatalf("GetIdea: %v", err)
	}
	if got.Input.Title != "Smart Compost Bin" || got.AuthorID != "author-1" {
		t.Fatalf("unexpected idea: %+v", got)
	}
	if len(got.Input.Technologies) != 2 {
		t.Fatalf("list fields must round-trip, got %v", got.Input.Technologies)
	}
	byPage, err := s.GetIdeaByPage(created.PageNumber)
	if err != nil {
		t.Fatalf("GetIdeaByPage: %v", err)
	}
	if byPage.IdeaID != created.IdeaID {
		t.Fatal("page lookup returned a different idea")
	}
	if _, err := s.GetIdea("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishSettlesExactlyOnce(t *testing.T) {
	s := openTestStore(t)
	idea, err := s.CreateIdea(sampleInput(), "")
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	if err := s.PublishIdea(idea.IdeaID, "<html>page</html>", "# report", 74.5, "RECOMMENDED"); err != nil {
		t.Fatalf("PublishIdea: %v", err)
	}
	got, err := s.GetIdea(idea.IdeaID)
	if err != nil {
		t.Fatalf("GetIdea: %v", err)
	}
	if got.Status != StatusPublished || got.Score != 74.5 || got.ContentHTML == "" {
		t.Fatalf("publish did not persist: %+v", got)
	}
	// A settled idea can settle neither again nor the other way.
	if err := s.PublishIdea(idea.IdeaID, "x", "y", 1, "z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second publish must fail with ErrNotFound, got %v", err)
	}
	if err := s.MarkIdeaDraft(idea.IdeaID, "too late", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("draft after publish must fail with ErrNotFound, got %v", err)
	}
}

func TestMarkIdeaDraft(t *testing.T) {
	s := openTestStore(t)
	idea, err := s.CreateIdea(sampleInput(), "")
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	if err := s.MarkIdeaDraft(idea.IdeaID, "score: model unavailable", "# failure report"); err != nil {
		t.Fatalf("MarkIdeaDraft: %v", err)
	}
	got, err := s.GetIdea(idea.IdeaID)
	if err != nil {
		t.Fatalf("GetIdea: %v", err)
	}
	if got.Status != StatusDraft || got.FailureReason == "" {
		t.Fatalf("draft did not persist: %+v", got)
	}
	if err := s.PublishIdea(idea.IdeaID, "x", "y", 1, "z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("publish after draft must fail, got %v", err)
	}
}

func TestListIdeasFiltersByStatus(t *testing.T) {
	s := openTestStore(t)
	a, _ := s.CreateIdea(sampleInput(), "")
	b, _ := s.CreateIdea(sampleInput(), "")
	if err := s.PublishIdea(a.IdeaID, "<html></html>", "", 80, "RECOMMENDED"); err != nil {
		t.Fatalf("PublishIdea: %v", err)
	}
	published, err := s.ListIdeas(StatusPublished)
	if err != nil {
		t.Fatalf("ListIdeas: %v", err)
	}
	if len(published) != 1 || published[0].IdeaID != a.IdeaID {
		t.Fatalf("unexpected published list: %+v", published)
	}
	all, err := s.ListIdeas("")
	if err != nil {
		t.Fatalf("ListIdeas: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both ideas, got %d", len(all))
	}
	_ = b
}

func TestVotes(t *testing.T) {
	s := openTestStore(t)
	idea, _ := s.CreateIdea(sampleInput(), "")
	if err := s.AddVote(idea.IdeaID, "u1", 1); err != nil {
		t.Fatalf("AddVote: %v", err)
	}
	if err := s.AddVote(idea.IdeaID, "u2", -5); err != nil {
		t.Fatalf("AddVote: %v", err)
	}
	if err := s.AddVote(idea.IdeaID, "u1", 1); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("duplicate vote must fail, got %v", err)
	}
	total, err := s.VoteTotal(idea.IdeaID)
	if err != nil {
		t.Fatalf("VoteTotal: %v", err)
	}
	// Values are normalized to +1/-1 regardless of the submitted magnitude.
	if total != 0 {
		t.Fatalf("expected total 0, got %d", total)
	}
	got, err := s.GetIdea(idea.IdeaID)
	if err != nil {
		t.Fatalf("GetIdea: %v", err)
	}
	if got.Votes != 0 {
		t.Fatalf("idea must carry its vote total, got %d", got.Votes)
	}
}

func TestComments(t *testing.T) {
	s := openTestStore(t)
	idea, _ := s.CreateIdea(sampleInput(), "")
	c, err := s.AddComment(idea.IdeaID, "u1", "alice", "  Looks promising.  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if c.Body != "Looks promising." {
		t.Fatalf("body must be trimmed, got %q", c.Body)
	}
	if _, err := s.AddComment(idea.IdeaID, "u1", "alice", "   "); err == nil {
		t.Fatal("blank comment must fail")
	}
	list, err := s.ListComments(idea.IdeaID)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(list) != 1 || list[0].Username != "alice" {
		t.Fatalf("unexpected comments: %+v", list)
	}
}

func TestUsersAndSessions(t *testing.T) {
	s := openTestStore(t)
	u, err := s.CreateUser("alice", "hash", "member")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser("alice", "other", "member"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username must fail, got %v", err)
	}
	got, err := s.GetUserByUsername("alice")
	if err != nil || got.UserID != u.UserID {
		t.Fatalf("GetUserByUsername: %v %+v", err, got)
	}

	sess, err := s.CreateSession(u.UserID, u.Username, u.Role, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	back, err := s.GetSession(sess.Token)
	if err != nil || back.UserID != u.UserID || back.Username != "alice" {
		t.Fatalf("GetSession: %v %+v", err, back)
	}

	expired, err := s.CreateSession(u.UserID, u.Username, u.Role, -time.Minute)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := s.GetSession(expired.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session must be ErrNotFound, got %v", err)
	}
	if _, err := s.GetSession("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token must be ErrNotFound, got %v", err)
	}
}
