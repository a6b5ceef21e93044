package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeModel returns a canned response or error from Generate. WithTools
// returns the same instance so tests can inspect calls.
type fakeModel struct {
	resp  *schema.Message
	err   error
	delay time.Duration
}

func (f *fakeModel) Generate(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeModel) Stream(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}

func (f *fakeModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func toolCallMessage(args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Function: schema.FunctionCall{Name: intentToolName, Arguments: args},
		}},
	}
}

func newTestInterpreter(t *testing.T, m model.ToolCallingChatModel) *Interpreter {
	t.Helper()
	in, err := NewInterpreter(m, time.Second)
	if err != nil {
		t.Fatalf("NewInterpreter: %v", err)
	}
	return in
}

func TestInterpretAddCommand(t *testing.T) {
	in := newTestInterpreter(t, &fakeModel{
		resp: toolCallMessage(`{"action":"add","confidence":0.92,"title":"buy groceries","due_date":"tomorrow","detected_language":"en"}`),
	})

	cmd := in.Interpret(context.Background(), "add buy groceries for tomorrow", nil, nil)

	if cmd.Action != ActionAdd {
		t.Fatalf("action = %q, want add", cmd.Action)
	}
	if cmd.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", cmd.Confidence)
	}
	if cmd.Title != "buy groceries" {
		t.Errorf("title = %q", cmd.Title)
	}
	if cmd.DueDate == nil {
		t.Fatal("expected a due date")
	}
	wantDue := time.Now().AddDate(0, 0, 1)
	if cmd.DueDate.Day() != wantDue.Day() {
		t.Errorf("due = %v, want day %d", cmd.DueDate, wantDue.Day())
	}
	if cmd.SuggestedCLI == "" {
		t.Error("expected a CLI suggestion")
	}
}

func TestInterpretNumericTaskIndex(t *testing.T) {
	ctxTasks := []TaskContext{
		{ID: "task_aaaa1111", Title: "water plants"},
		{ID: "task_bbbb2222", Title: "call dentist"},
	}
	in := newTestInterpreter(t, &fakeModel{
		resp: toolCallMessage(`{"action":"complete","confidence":0.9,"task_id":2}`),
	})

	cmd := in.Interpret(context.Background(), "finish the second one", nil, ctxTasks)

	if cmd.TaskID != "task_bbbb2222" {
		t.Errorf("task_id = %q, want task_bbbb2222", cmd.TaskID)
	}
}

func TestInterpretIndexOutOfRange(t *testing.T) {
	ctxTasks := []TaskContext{{ID: "task_aaaa1111", Title: "water plants"}}
	in := newTestInterpreter(t, &fakeModel{
		resp: toolCallMessage(`{"action":"complete","confidence":0.9,"task_id":"5"}`),
	})

	cmd := in.Interpret(context.Background(), "complete task 5", nil, ctxTasks)

	if cmd.TaskID != "" {
		t.Errorf("task_id = %q, want empty", cmd.TaskID)
	}
}

func TestInterpretTaskReference(t *testing.T) {
	ctxTasks := []TaskContext{
		{ID: "task_aaaa1111", Title: "water the plants"},
		{ID: "task_bbbb2222", Title: "call dentist"},
	}
	in := newTestInterpreter(t, &fakeModel{
		resp: toolCallMessage(`{"action":"complete","confidence":0.85,"task_reference":"plants"}`),
	})

	cmd := in.Interpret(context.Background(), "I watered the plants", nil, ctxTasks)

	if cmd.TaskID != "task_aaaa1111" {
		t.Errorf("task_id = %q, want task_aaaa1111", cmd.TaskID)
	}
	if cmd.NeedsClarification {
		t.Error("unique match should not need clarification")
	}
}

func TestInterpretAmbiguousReference(t *testing.T) {
	ctxTasks := []TaskContext{
		{ID: "task_aaaa1111", Title: "call mom"},
		{ID: "task_bbbb2222", Title: "call dentist"},
	}
	in := newTestInterpreter(t, &fakeModel{
		resp: toolCallMessage(`{"action":"delete","confidence":0.9,"task_reference":"call"}`),
	})

	cmd := in.Interpret(context.Background(), "delete the call task", nil, ctxTasks)

	if !cmd.NeedsClarification {
		t.Fatal("ambiguous reference should need clarification")
	}
	if len(cmd.MultipleMatches) != 2 {
		t.Errorf("matches = %v, want 2", cmd.MultipleMatches)
	}
	if cmd.TaskID != "" {
		t.Errorf("task_id = %q, want empty", cmd.TaskID)
	}
}

func TestInterpretTimeout(t *testing.T) {
	in, err := NewInterpreter(&fakeModel{delay: 200 * time.Millisecond, resp: toolCallMessage(`{}`)}, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	cmd := in.Interpret(context.Background(), "add something", nil, nil)

	if cmd.Action != ActionUnknown {
		t.Errorf("action = %q, want unknown", cmd.Action)
	}
	if cmd.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", cmd.Confidence)
	}
	if !cmd.NeedsClarification {
		t.Error("timeout should produce a clarification")
	}
}

func TestInterpretModelError(t *testing.T) {
	in := newTestInterpreter(t, &fakeModel{err: fmt.Errorf("connection refused")})

	cmd := in.Interpret(context.Background(), "add something", nil, nil)

	if cmd.Action != ActionUnknown || cmd.Confidence != 0 {
		t.Errorf("got action=%q confidence=%v, want unknown/0", cmd.Action, cmd.Confidence)
	}
}

func TestInterpretNoToolCall(t *testing.T) {
	in := newTestInterpreter(t, &fakeModel{
		resp: &schema.Message{Role: schema.Assistant, Content: "Sure, I can help with tasks!"},
	})

	cmd := in.Interpret(context.Background(), "hello", nil, nil)

	if cmd.Action != ActionUnknown {
		t.Errorf("action = %q, want unknown", cmd.Action)
	}
}

func TestInterpretMalformedArguments(t *testing.T) {
	in := newTestInterpreter(t, &fakeModel{resp: toolCallMessage(`{"action": "add", "confi`)})

	cmd := in.Interpret(context.Background(), "add milk", nil, nil)

	if cmd.Action != ActionUnknown || cmd.Confidence != 0 {
		t.Errorf("got action=%q confidence=%v, want unknown/0", cmd.Action, cmd.Confidence)
	}
}

func TestInterpretUnknownActionZeroesConfidence(t *testing.T) {
	in := newTestInterpreter(t, &fakeModel{
		resp: toolCallMessage(`{"action":"dance","confidence":0.9}`),
	})

	cmd := in.Interpret(context.Background(), "dance for me", nil, nil)

	if cmd.Action != ActionUnknown {
		t.Fatalf("action = %q, want unknown", cmd.Action)
	}
	if cmd.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", cmd.Confidence)
	}
}

func TestParseDueDate(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want string // empty means nil
	}{
		{"today", "2026-08-31"},
		{"tomorrow", "2026-09-01"},
		{"next week", "2026-09-07"},
		{"in 3 days", "2026-09-03"},
		{"2026-12-25", "2026-12-25"},
		{"whenever", ""},
		{"", ""},
	}
	for _, c := range cases {
		got := parseDueDate(c.in, now)
		if c.want == "" {
			if got != nil {
				t.Errorf("parseDueDate(%q) = %v, want nil", c.in, got)
			}
			continue
		}
		if got == nil {
			t.Errorf("parseDueDate(%q) = nil, want %s", c.in, c.want)
			continue
		}
		if got.Format("2006-01-02") != c.want {
			t.Errorf("parseDueDate(%q) = %s, want %s", c.in, got.Format("2006-01-02"), c.want)
		}
	}
}
