package rpc

import (
	"context"
	"encoding/json"
	"testing"
)

func TestDispatchUnknownMethod(t *testing.T) {
	r := NewRouter(nil)
	resp := r.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "nope"})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRouter(nil)
	r.Register("echo.ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"pong": true}, nil
	})
	resp := r.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: "a", Method: "echo.ping"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	m, ok := resp.Result.(map[string]any)
	if !ok || m["pong"] != true {
		t.Fatalf("unexpected result: %#v", resp.Result)
	}
}

func TestDispatchHandlerErrorWrapsAsApplicationError(t *testing.T) {
	r := NewRouter(nil)
	r.Register("boom", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, errBoom
	})
	resp := r.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "boom"})
	if resp.Error == nil || resp.Error.Code != CodeApplication {
		t.Fatalf("expected application error, got %+v", resp.Error)
	}
}

func TestRequestIsNotification(t *testing.T) {
	if (Request{ID: 1}).IsNotification() {
		t.Fatal("request with an id should not be a notification")
	}
	if !(Request{}).IsNotification() {
		t.Fatal("request with no id should be a notification")
	}
}

func TestDecodeParamsEmptyIsNoop(t *testing.T) {
	var dst struct{ X int }
	if err := decodeParams(nil, &dst); err != nil {
		t.Fatalf("unexpected error decoding empty params: %v", err)
	}
}

func TestDecodeParamsInvalidJSONReturnsValidationErr(t *testing.T) {
	var dst struct{ X int }
	if err := decodeParams(json.RawMessage(`{not json`), &dst); err == nil {
		t.Fatal("expected an error for malformed params")
	}
}

func TestCheckFieldsRejectsUnknownKey(t *testing.T) {
	allowed := map[string]bool{"name": true}
	if err := checkFields(map[string]any{"name": "x"}, allowed); err != nil {
		t.Fatalf("expected allowed field to pass, got %v", err)
	}
	if err := checkFields(map[string]any{"nope": "x"}, allowed); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
