package tools

import (
	"context"
	"errors"
	"testing"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its arguments",
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"echo": args}, nil
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	if err := r.Register(echoTool(NameCheckAvailability)); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := r.Register(echoTool(NameProposeEvent)); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if !r.Has(NameCheckAvailability) {
		t.Error("registered tool not found")
	}
	if r.Get("nope") != nil {
		t.Error("Get of unknown tool must return nil")
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}

	names := r.Names()
	if len(names) != 2 || names[0] != NameCheckAvailability {
		t.Errorf("Names() = %v, want sorted", names)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	if err := r.Register(echoTool(NameRelayMessage)); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	err := r.Register(echoTool(NameRelayMessage))
	if !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Errorf("err = %v, want ErrToolAlreadyRegistered", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	if err := r.Register(&Tool{Name: "", Execute: nil}); err == nil {
		t.Error("expected error for nameless tool")
	}
	if err := r.Register(&Tool{Name: "broken"}); err == nil {
		t.Error("expected error for tool without Execute")
	}
}

func TestExecuteRequiredArgs(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	tool := echoTool(NameShareContext)
	tool.Schema = Schema{
		Required: []string{"category", "requester"},
		Properties: map[string]Property{
			"category":  {Type: "string"},
			"requester": {Type: "string"},
		},
	}
	r.MustRegister(tool)

	res, err := r.Execute(context.Background(), NameShareContext, map[string]any{"category": "dietary"})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Fatalf("err = %v, want ErrMissingRequiredArg", err)
	}
	if res == nil || res.IsSuccess() {
		t.Error("result must carry the fault")
	}

	res, err = r.Execute(context.Background(), NameShareContext, map[string]any{
		"category":  "dietary",
		"requester": "bob",
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !res.IsSuccess() || res.Output == nil {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	_, err := r.Execute(context.Background(), "missing", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("err = %v, want ErrToolNotFound", err)
	}
}

func TestResultDenied(t *testing.T) {
	t.Parallel()

	denied := &Result{Output: map[string]any{"access_denied": "requester not in trusted contacts"}}
	if !denied.Denied() {
		t.Error("access_denied output must report Denied")
	}
	ok := &Result{Output: map[string]any{"delivered": true}}
	if ok.Denied() {
		t.Error("normal output must not report Denied")
	}
}
