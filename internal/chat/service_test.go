package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/bonsai-todo/bonsai/internal/ai"
	"github.com/bonsai-todo/bonsai/internal/conversations"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

// fixedInterpreter returns the same command for every message.
type fixedInterpreter struct {
	cmd *ai.Command
}

func (f *fixedInterpreter) Interpret(_ context.Context, message string, _ []*schema.Message, _ []ai.TaskContext) *ai.Command {
	cmd := *f.cmd
	cmd.OriginalText = message
	if cmd.SuggestedCLI == "" {
		cmd.SuggestedCLI = ai.BuildCLI(&cmd)
	}
	return &cmd
}

type memConvStore struct {
	convs    map[string]*conversations.Conversation
	messages map[string][]*conversations.Message
}

func newMemConvStore() *memConvStore {
	return &memConvStore{
		convs:    make(map[string]*conversations.Conversation),
		messages: make(map[string][]*conversations.Message),
	}
}

func (s *memConvStore) CreateConversation(c *conversations.Conversation) error {
	cp := *c
	s.convs[c.ID] = &cp
	return nil
}

func (s *memConvStore) GetConversation(userID, id string) (*conversations.Conversation, error) {
	c, ok := s.convs[id]
	if !ok || c.UserID != userID {
		return nil, conversations.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memConvStore) ListConversations(userID string) ([]*conversations.Conversation, error) {
	var out []*conversations.Conversation
	for _, c := range s.convs {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memConvStore) DeleteConversation(userID, id string) error {
	c, ok := s.convs[id]
	if !ok || c.UserID != userID {
		return conversations.ErrNotFound
	}
	delete(s.convs, id)
	delete(s.messages, id)
	return nil
}

func (s *memConvStore) TouchConversation(id string, updatedAt time.Time) error {
	if c, ok := s.convs[id]; ok {
		c.UpdatedAt = updatedAt
	}
	return nil
}

func (s *memConvStore) SetConversationTitle(id, title string) error {
	if c, ok := s.convs[id]; ok {
		c.Title = title
	}
	return nil
}

func (s *memConvStore) AppendMessage(m *conversations.Message) error {
	cp := *m
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &cp)
	return nil
}

func (s *memConvStore) ListMessages(conversationID string, limit int) ([]*conversations.Message, error) {
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*conversations.Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

type memPendingStore struct {
	items map[string]*PendingCommand
}

func newMemPendingStore() *memPendingStore {
	return &memPendingStore{items: make(map[string]*PendingCommand)}
}

func (s *memPendingStore) PutPending(p *PendingCommand) error {
	cp := *p
	s.items[p.ConversationID] = &cp
	return nil
}

func (s *memPendingStore) GetPending(conversationID string) (*PendingCommand, error) {
	p, ok := s.items[conversationID]
	if !ok {
		return nil, ErrNoPending
	}
	cp := *p
	return &cp, nil
}

func (s *memPendingStore) DeletePending(conversationID string) error {
	delete(s.items, conversationID)
	return nil
}

type memTaskStore struct {
	items map[string]*tasks.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{items: make(map[string]*tasks.Task)}
}

func (s *memTaskStore) CreateTask(t *tasks.Task) error {
	cp := *t
	s.items[t.ID] = &cp
	return nil
}

func (s *memTaskStore) GetTask(userID, id string) (*tasks.Task, error) {
	t, ok := s.items[id]
	if !ok || t.UserID != userID {
		return nil, tasks.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTaskStore) ListTasks(userID string, filter tasks.ListFilter) ([]*tasks.Task, error) {
	var out []*tasks.Task
	for _, t := range s.items {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memTaskStore) UpdateTask(t *tasks.Task) error {
	if _, ok := s.items[t.ID]; !ok {
		return tasks.ErrNotFound
	}
	cp := *t
	s.items[t.ID] = &cp
	return nil
}

func (s *memTaskStore) DeleteTask(userID, id string) error {
	t, ok := s.items[id]
	if !ok || t.UserID != userID {
		return tasks.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memTaskStore) ListDueTasks(before time.Time) ([]*tasks.Task, error) {
	return nil, nil
}

// Chat never touches tags; the store satisfies the interface with no-ops.
func (s *memTaskStore) CreateTag(*tasks.Tag) error                 { return nil }
func (s *memTaskStore) GetTag(_, _ string) (*tasks.Tag, error)     { return nil, tasks.ErrTagNotFound }
func (s *memTaskStore) GetTagByName(_, _ string) (*tasks.Tag, error) {
	return nil, tasks.ErrTagNotFound
}
func (s *memTaskStore) ListTags(string) ([]*tasks.Tag, error)    { return nil, nil }
func (s *memTaskStore) UpdateTag(*tasks.Tag) error               { return tasks.ErrTagNotFound }
func (s *memTaskStore) DeleteTag(_, _ string) error              { return tasks.ErrTagNotFound }
func (s *memTaskStore) SetTaskTags(_, _ string, _ []string) error { return nil }

type fixture struct {
	svc       *Service
	tasks     *tasks.Service
	convs     *conversations.Service
	convStore *memConvStore
	pending   *memPendingStore
}

func newFixture(interpreter Interpreter) *fixture {
	taskSvc := tasks.NewService(newMemTaskStore(), nil)
	convStore := newMemConvStore()
	convSvc := conversations.NewService(convStore)
	pending := newMemPendingStore()
	svc := NewService(
		interpreter,
		ai.NewExecutor(taskSvc),
		ai.NewFallbackHandler(ai.DefaultThresholds),
		taskSvc,
		convSvc,
		pending,
		nil,
		Options{},
	)
	return &fixture{svc: svc, tasks: taskSvc, convs: convSvc, convStore: convStore, pending: pending}
}

func TestProcessHighConfidenceExecutes(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "buy milk",
		Confidence: 0.95,
	}})

	resp, err := f.svc.ProcessMessage(context.Background(), "alice", "", "add buy milk")
	if err != nil {
		t.Fatal(err)
	}

	if !resp.Executed {
		t.Fatalf("expected execution, got: %s", resp.Message)
	}
	if resp.Task == nil || resp.Task.Title != "buy milk" {
		t.Errorf("unexpected task: %+v", resp.Task)
	}
	if resp.ConversationID == "" {
		t.Error("response should carry the conversation ID")
	}

	list, err := f.tasks.List("alice", tasks.ListFilter{Status: tasks.StatusAll})
	if err != nil || len(list) != 1 {
		t.Errorf("task store has %d tasks, want 1", len(list))
	}
}

func TestProcessRecordsBothTurnsOnce(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "x",
		Confidence: 0.95,
	}})

	resp, err := f.svc.ProcessMessage(context.Background(), "alice", "", "add x")
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := f.convs.Messages(resp.ConversationID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("conversation has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != conversations.RoleUser || msgs[1].Role != conversations.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Confidence == nil || *msgs[1].Confidence != 0.95 {
		t.Errorf("assistant confidence = %v", msgs[1].Confidence)
	}
}

func TestProcessAutoTitles(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionList,
		Confidence: 0.9,
	}})

	resp, err := f.svc.ProcessMessage(context.Background(), "alice", "", "show me my tasks")
	if err != nil {
		t.Fatal(err)
	}

	conv, err := f.convs.Get("alice", resp.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.Title != "show me my tasks" {
		t.Errorf("title = %q", conv.Title)
	}
}

func TestProcessMediumConfidenceParksCommand(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "maybe this",
		Confidence: 0.6,
	}})

	resp, err := f.svc.ProcessMessage(context.Background(), "alice", "", "hmm add maybe this?")
	if err != nil {
		t.Fatal(err)
	}

	if !resp.NeedsConfirmation {
		t.Fatalf("expected confirmation request, got: %s", resp.Message)
	}
	if resp.Executed {
		t.Error("command must not run before confirmation")
	}
	if _, err := f.pending.GetPending(resp.ConversationID); err != nil {
		t.Error("pending command should be stored")
	}

	list, _ := f.tasks.List("alice", tasks.ListFilter{Status: tasks.StatusAll})
	if len(list) != 0 {
		t.Errorf("task store has %d tasks before confirmation", len(list))
	}
}

func TestConfirmYesExecutesPending(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "confirmed task",
		Confidence: 0.6,
	}})

	first, err := f.svc.ProcessMessage(context.Background(), "alice", "", "add confirmed task?")
	if err != nil {
		t.Fatal(err)
	}

	resp, err := f.svc.Confirm(context.Background(), "alice", first.ConversationID, true)
	if err != nil {
		t.Fatal(err)
	}

	if !resp.Executed {
		t.Fatalf("confirmed command should run, got: %s", resp.Message)
	}
	if resp.Task == nil || resp.Task.Title != "confirmed task" {
		t.Errorf("unexpected task: %+v", resp.Task)
	}
	// Single use: confirming again finds nothing.
	resp, err = f.svc.Confirm(context.Background(), "alice", first.ConversationID, true)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Executed {
		t.Error("pending command must be consumed on first confirmation")
	}
}

func TestNewerPendingReplacesOlder(t *testing.T) {
	interp := &fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "first idea",
		Confidence: 0.6,
	}}
	f := newFixture(interp)

	first, err := f.svc.ProcessMessage(context.Background(), "alice", "", "add first idea?")
	if err != nil {
		t.Fatal(err)
	}
	if !first.NeedsConfirmation {
		t.Fatalf("expected confirmation request, got: %s", first.Message)
	}

	// A second unconfirmed command in the same conversation takes the
	// slot; the earlier one can no longer be confirmed.
	interp.cmd = &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "second idea",
		Confidence: 0.6,
	}
	second, err := f.svc.ProcessMessage(context.Background(), "alice", first.ConversationID, "no wait, add second idea?")
	if err != nil {
		t.Fatal(err)
	}
	if !second.NeedsConfirmation {
		t.Fatalf("expected confirmation request, got: %s", second.Message)
	}

	resp, err := f.svc.Confirm(context.Background(), "alice", first.ConversationID, true)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Executed {
		t.Fatalf("confirmed command should run, got: %s", resp.Message)
	}
	if resp.Task == nil || resp.Task.Title != "second idea" {
		t.Errorf("confirmation ran the stale command: %+v", resp.Task)
	}

	list, _ := f.tasks.List("alice", tasks.ListFilter{Status: tasks.StatusAll})
	if len(list) != 1 {
		t.Fatalf("want exactly 1 task, got %d", len(list))
	}
	if list[0].Title != "second idea" {
		t.Errorf("wrong task created: %q", list[0].Title)
	}
}

func TestConfirmNoDiscardsPending(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionDelete,
		TaskID:     "task_x",
		Confidence: 0.9,
	}})

	first, err := f.svc.ProcessMessage(context.Background(), "alice", "", "delete that")
	if err != nil {
		t.Fatal(err)
	}
	if !first.NeedsConfirmation {
		t.Fatalf("delete should always confirm, got: %s", first.Message)
	}

	resp, err := f.svc.Confirm(context.Background(), "alice", first.ConversationID, false)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Executed {
		t.Error("declined command must not run")
	}
	if _, err := f.pending.GetPending(first.ConversationID); err == nil {
		t.Error("declined pending command should be removed")
	}
}

func TestConfirmOtherUsersPendingIsInvisible(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "alice's",
		Confidence: 0.6,
	}})

	first, err := f.svc.ProcessMessage(context.Background(), "alice", "", "add alice's?")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Confirm(context.Background(), "mallory", first.ConversationID, true); err == nil {
		t.Error("confirming another user's conversation should fail")
	}
}

func TestProcessLowConfidenceFallsBack(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Title:      "something",
		Confidence: 0.3,
	}})

	resp, err := f.svc.ProcessMessage(context.Background(), "alice", "", "maybe do a thing")
	if err != nil {
		t.Fatal(err)
	}

	if !resp.IsFallback {
		t.Fatalf("expected fallback, got: %s", resp.Message)
	}
	if !strings.Contains(resp.Message, resp.SuggestedCLI) {
		t.Errorf("fallback %q should include the CLI suggestion %q", resp.Message, resp.SuggestedCLI)
	}
}

func TestProcessWithoutInterpreter(t *testing.T) {
	f := newFixture(nil)

	resp, err := f.svc.ProcessMessage(context.Background(), "alice", "", "add milk")
	if err != nil {
		t.Fatal(err)
	}

	if !resp.IsFallback {
		t.Fatal("no provider should mean fallback")
	}
	if !strings.Contains(resp.Message, "bonsai add") {
		t.Errorf("unavailable message should include help: %q", resp.Message)
	}
}

func TestProcessCLIBypass(t *testing.T) {
	f := newFixture(&fixedInterpreter{cmd: &ai.Command{
		Action:     ai.ActionAdd,
		Confidence: 0.95,
	}})

	resp, err := f.svc.ProcessMessage(context.Background(), "alice", "", `bonsai add "direct"`)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Executed || resp.IsFallback {
		t.Fatalf("CLI text skips interpretation, got: %+v", resp)
	}
	if resp.SuggestedCLI != `bonsai add "direct"` {
		t.Errorf("suggested = %q", resp.SuggestedCLI)
	}

	resp, err = f.svc.ProcessMessage(context.Background(), "alice", "", "/cli list --pending")
	if err != nil {
		t.Fatal(err)
	}
	if resp.SuggestedCLI != "bonsai list --pending" {
		t.Errorf("suggested = %q", resp.SuggestedCLI)
	}
}

func TestPendingExpiry(t *testing.T) {
	p := &PendingCommand{CreatedAt: time.Now().Add(-10 * time.Minute)}
	if !p.Expired(time.Now()) {
		t.Error("ten minute old pending command should be expired")
	}
	p.CreatedAt = time.Now()
	if p.Expired(time.Now()) {
		t.Error("fresh pending command should not be expired")
	}
}
