package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestExamRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/exam"},
		{http.MethodPost, "/exam"},
		{http.MethodDelete, "/exam"},
		{http.MethodGet, "/exam/questions"},
	} {
		resp := ts.do(t, target.method, target.path, nil, nil)
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", target.method, target.path, resp.Code)
		}
	}
}

func TestSubmitEssaysFlow(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.register(t, "Budi", "budi@test.id", "secret1")

	// No score yet.
	resp := ts.do(t, http.MethodGet, "/exam", nil, cookie)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before submission, got %d", resp.Code)
	}

	// Submit essays; averages are banded to the nearest half point.
	resp = ts.do(t, http.MethodPost, "/exam", ExamActionRequest{
		Action: "submit-essays",
		Essays: []string{"first essay text", "second essay text"},
	}, cookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var submitted SubmitEssaysResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.Score.TaskAchievement != 6.0 {
		t.Errorf("task achievement band = %v, want 6.0", submitted.Score.TaskAchievement)
	}
	if submitted.Score.GrammaticalRange != 6.5 {
		t.Errorf("grammatical band = %v, want 6.5", submitted.Score.GrammaticalRange)
	}

	// The persisted record is retrievable.
	resp = ts.do(t, http.MethodGet, "/exam", nil, cookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 after submission, got %d", resp.Code)
	}
	var fetched ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fetched.Score.LexicalResource != 7.0 {
		t.Errorf("lexical band = %v, want 7.0", fetched.Score.LexicalResource)
	}

	// Deleting removes it again.
	resp = ts.do(t, http.MethodDelete, "/exam", nil, cookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.Code)
	}
	resp = ts.do(t, http.MethodGet, "/exam", nil, cookie)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestSubmitEssaysAllBlank(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.register(t, "Budi", "budi@test.id", "secret1")

	resp := ts.do(t, http.MethodPost, "/exam", ExamActionRequest{
		Action: "submit-essays",
		Essays: []string{"", "", ""},
	}, cookie)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
	if ts.scorer.calls != 0 {
		t.Error("expected scoring service not to be called")
	}
}

func TestSubmitUnknownAction(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.register(t, "Budi", "budi@test.id", "secret1")

	resp := ts.do(t, http.MethodPost, "/exam", ExamActionRequest{
		Action: "do-something-else",
		Essays: []string{"essay"},
	}, cookie)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "unknown action" {
		t.Errorf("unexpected error %q", body.Error)
	}
}

func TestQuestionManagement(t *testing.T) {
	ts := newTestServer(t)
	userCookie := ts.register(t, "Budi", "budi@test.id", "secret1")

	// Regular users can list but not manage questions.
	resp := ts.do(t, http.MethodGet, "/exam/questions", nil, userCookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	resp = ts.do(t, http.MethodPost, "/exam/questions", QuestionUpsertRequest{Prompt: "Describe your hometown."}, userCookie)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.Code)
	}

	// Promote an account to admin and manage questions.
	adminCookie := ts.register(t, "Admin", "admin@test.id", "secret1")
	for id, user := range ts.userRepo.byID {
		if user.Email == "admin@test.id" {
			user.Role = "admin"
			ts.userRepo.byID[id] = user
		}
	}

	resp = ts.do(t, http.MethodPost, "/exam/questions", QuestionUpsertRequest{Prompt: "Describe your hometown."}, adminCookie)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID   int    `json:"id"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Type != "long-answer" {
		t.Errorf("expected default type, got %q", created.Type)
	}

	resp = ts.do(t, http.MethodGet, "/exam/questions", nil, userCookie)
	var listed QuestionListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("expected one question, got %d", len(listed.Items))
	}

	resp = ts.do(t, http.MethodDelete, "/exam/questions/1", nil, adminCookie)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	resp = ts.do(t, http.MethodDelete, "/exam/questions/1", nil, adminCookie)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing question, got %d", resp.Code)
	}

	// Blank prompt is rejected.
	resp = ts.do(t, http.MethodPost, "/exam/questions", QuestionUpsertRequest{Prompt: "   "}, adminCookie)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank prompt, got %d", resp.Code)
	}
}
