package memory

import (
	"context"
	"testing"

	"livequiz-service/internal/domain"
)

func TestLeaderboardRanking(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddUser(domain.Participant{UserID: "u1", DisplayName: "Alice"})
	store.AddUser(domain.Participant{UserID: "u2", DisplayName: "Bob"})
	store.AddUser(domain.Participant{UserID: "u3", DisplayName: "Cara"})

	_ = store.IncrementSegmentScore(ctx, "seg-1", "u1", 500)
	_ = store.IncrementSegmentScore(ctx, "seg-1", "u2", 900)
	_ = store.IncrementSegmentScore(ctx, "seg-1", "u1", 300)
	_ = store.IncrementSegmentScore(ctx, "seg-1", "u3", 800)

	lb, err := store.SegmentLeaderboard(ctx, "seg-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(lb))
	}
	if lb[0].UserID != "u2" || lb[0].Score != 900 || lb[0].Rank != 1 {
		t.Fatalf("expected Bob first with 900, got %+v", lb[0])
	}
	if lb[1].UserID != "u3" || lb[1].Rank != 2 {
		t.Fatalf("expected Cara second, got %+v", lb[1])
	}
	if lb[2].UserID != "u1" || lb[2].Score != 800 || lb[2].DisplayName != "Alice" {
		t.Fatalf("expected Alice third with accumulated 800, got %+v", lb[2])
	}
}

func TestUpsertAnswerLatestWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_ = store.UpsertAnswer(ctx, domain.AnswerRecord{SegmentID: "seg-1", QuestionID: "q1", UserID: "u1", SelectedAnswer: "Lyon"})
	_ = store.UpsertAnswer(ctx, domain.AnswerRecord{SegmentID: "seg-1", QuestionID: "q1", UserID: "u1", SelectedAnswer: "Paris", IsCorrect: true})

	recs := store.AnswerRecords()
	if len(recs) != 1 {
		t.Fatalf("expected one record per key, got %d", len(recs))
	}
	if recs[0].SelectedAnswer != "Paris" || !recs[0].IsCorrect {
		t.Fatalf("expected latest answer kept, got %+v", recs[0])
	}
}

func TestInsertQuestionAssignsOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddQuestion(domain.Question{ID: "q1", SegmentID: "seg-1", OrderIndex: 0})

	inserted, err := store.InsertQuestion(ctx, domain.Question{SegmentID: "seg-1", Text: "Generated?", CorrectAnswer: "Yes"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID == "" || inserted.OrderIndex != 1 {
		t.Fatalf("expected id assigned and order appended, got %+v", inserted)
	}

	questions, _ := store.QuestionsBySegmentOrdered(ctx, "seg-1")
	if len(questions) != 2 || questions[1].ID != inserted.ID {
		t.Fatalf("expected generated question last, got %+v", questions)
	}
}

func TestUserIdentityFallback(t *testing.T) {
	store := NewStore()
	identity, err := store.UserIdentity(context.Background(), "anon-7")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if identity.UserID != "anon-7" || identity.DisplayName != "anon-7" {
		t.Fatalf("expected id fallback identity, got %+v", identity)
	}
}
