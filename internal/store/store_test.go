package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func TestTopicLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	topic := &Topic{
		ID:                   "t1",
		UserID:               "u1",
		Title:                strPtr("Solar"),
		Description:          strPtr("solar panel efficiency"),
		Model:                "mistral-large-2512",
		Tier:                 "free",
		UpdateFrequencyHours: 24,
	}
	if err := s.CreateTopic(ctx, topic); err != nil {
		t.Fatalf("create: %v", err)
	}
	if topic.CreatedAt == 0 || topic.UpdatedAt != topic.CreatedAt {
		t.Errorf("timestamps not set: created=%d updated=%d", topic.CreatedAt, topic.UpdatedAt)
	}

	got, err := s.GetTopic(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Description == nil || *got.Description != "solar panel efficiency" {
		t.Fatalf("got %+v", got)
	}
	if got.NextUpdateTime != nil {
		t.Error("new topic must have no next update time")
	}

	missing, err := s.GetTopic(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("missing topic must return nil, nil")
	}
}

func TestListTopicsByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tc := range []struct{ id, user string }{
		{"t1", "u1"}, {"t2", "u1"}, {"t3", "u2"},
	} {
		topic := &Topic{ID: tc.id, UserID: tc.user}
		if err := s.CreateTopic(ctx, topic); err != nil {
			t.Fatalf("create %s: %v", tc.id, err)
		}
	}

	all, err := s.ListTopics(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all topics = %d, want 3", len(all))
	}

	mine, err := s.ListTopicsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("u1 topics = %d, want 2", len(mine))
	}
}

func TestScheduledTopics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scheduled := &Topic{ID: "t1", UserID: "u1", NextUpdateTime: int64Ptr(5_000)}
	unscheduled := &Topic{ID: "t2", UserID: "u1"}
	for _, topic := range []*Topic{scheduled, unscheduled} {
		if err := s.CreateTopic(ctx, topic); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.ListScheduledTopics(ctx)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("scheduled = %+v", got)
	}

	if err := s.SetTopicNextUpdate(ctx, "t2", 9_000); err != nil {
		t.Fatalf("set next update: %v", err)
	}
	got, err = s.ListScheduledTopics(ctx)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("scheduled = %d, want 2", len(got))
	}
	// Ordered by next_update_time ascending.
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDeleteTopicCascadesUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTopic(ctx, &Topic{ID: "t1", UserID: "u1"}); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	updates := []Update{
		{ID: "up1", TopicID: "t1", BatchID: "b1", Title: strPtr("one")},
		{ID: "up2", TopicID: "t1", BatchID: "b1", Title: strPtr("two")},
	}
	if err := s.CreateUpdates(ctx, updates); err != nil {
		t.Fatalf("create updates: %v", err)
	}

	if err := s.DeleteTopic(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	topic, err := s.GetTopic(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if topic != nil {
		t.Error("topic should be gone")
	}

	left, err := s.ListUpdates(ctx, UpdateListOpts{TopicID: "t1"})
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("%d updates survived the delete", len(left))
	}
}

func TestCreateUpdatesIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The second row reuses the first id: the whole batch must roll back.
	updates := []Update{
		{ID: "up1", TopicID: "t1", BatchID: "b1"},
		{ID: "up1", TopicID: "t1", BatchID: "b1"},
	}
	if err := s.CreateUpdates(ctx, updates); err == nil {
		t.Fatal("expected a constraint error")
	}

	got, err := s.ListUpdates(ctx, UpdateListOpts{TopicID: "t1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("%d rows persisted from a failed batch", len(got))
	}
}

func TestListUpdatesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	updates := []Update{
		{ID: "up1", TopicID: "t1", BatchID: "b1"},
		{ID: "up2", TopicID: "t1", BatchID: "b2"},
		{ID: "up3", TopicID: "t2", BatchID: "b3"},
	}
	if err := s.CreateUpdates(ctx, updates); err != nil {
		t.Fatalf("create: %v", err)
	}

	byTopic, err := s.ListUpdates(ctx, UpdateListOpts{TopicID: "t1"})
	if err != nil {
		t.Fatalf("list by topic: %v", err)
	}
	if len(byTopic) != 2 {
		t.Errorf("topic t1 updates = %d, want 2", len(byTopic))
	}

	byBatch, err := s.ListUpdates(ctx, UpdateListOpts{BatchID: "b2"})
	if err != nil {
		t.Fatalf("list by batch: %v", err)
	}
	if len(byBatch) != 1 || byBatch[0].ID != "up2" {
		t.Errorf("batch b2 = %+v", byBatch)
	}

	limited, err := s.ListUpdates(ctx, UpdateListOpts{Limit: 1})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

func TestUpsertAgentReplacesHandle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &Agent{ID: "a1", AgentHandle: "handle-old", Model: "serp-topic-update-agent"}
	if err := s.UpsertAgent(ctx, agent); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	agent.AgentHandle = "handle-new"
	if err := s.UpsertAgent(ctx, agent); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := s.GetAgent(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.AgentHandle != "handle-new" {
		t.Fatalf("got %+v", got)
	}

	byModel, err := s.GetAgentByModel(ctx, "serp-topic-update-agent")
	if err != nil {
		t.Fatalf("get by model: %v", err)
	}
	if byModel == nil || byModel.ID != "a1" {
		t.Fatalf("by model = %+v", byModel)
	}

	missing, err := s.GetAgent(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing agent: %v, %+v", err, missing)
	}
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{ID: "u1", Email: "ada@example.com", FirstName: "Ada", IsActive: true}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Email != "ada@example.com" || !got.IsActive {
		t.Fatalf("got %+v", got)
	}
	if got.LastName != nil {
		t.Error("last name should be null")
	}
}
