package lsp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestReadMessage(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	input := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	r := strings.NewReader(input)

	msg, err := readMessage(r)
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if msg.Method != "initialize" {
		t.Errorf("expected initialize, got %q", msg.Method)
	}
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	resp := rpcResponse{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Result:  map[string]string{"name": "gtsls"},
	}
	err := writeMessage(&buf, resp)
	if err != nil {
		t.Fatalf("writeMessage: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Content-Length:") {
		t.Error("missing Content-Length header")
	}
	if !strings.Contains(got, `"name":"gtsls"`) {
		t.Error("missing response body")
	}
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func initializedServer(input string, out io.Writer) *Server {
	s := NewServer(strings.NewReader(frame(`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{}}`)+input), out, nil)
	s.Handle("initialize", func(params json.RawMessage) (any, error) {
		return InitializeResult{}, nil
	})
	return s
}

func TestRoundTrip(t *testing.T) {
	// Simulate client -> server -> client
	var out bytes.Buffer
	s := initializedServer(frame(`{"jsonrpc":"2.0","id":1,"method":"shutdown"}`), &out)
	s.Handle("shutdown", func(params json.RawMessage) (any, error) {
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		if err := s.ServeOnce(); err != nil && err != io.EOF {
			t.Fatalf("serve: %v", err)
		}
	}
	if !strings.Contains(out.String(), `"id":1,"result":null`) {
		t.Errorf("expected null result, got: %s", out.String())
	}
}

func TestMethodNotFound(t *testing.T) {
	var out bytes.Buffer
	s := initializedServer(frame(`{"jsonrpc":"2.0","id":7,"method":"textDocument/hover","params":{}}`), &out)
	if err := s.Serve(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !strings.Contains(out.String(), `"code":-32601`) {
		t.Errorf("expected method-not-found error, got: %s", out.String())
	}
}

func TestRequestBeforeInitialize(t *testing.T) {
	var out bytes.Buffer
	s := NewServer(strings.NewReader(frame(`{"jsonrpc":"2.0","id":1,"method":"textDocument/documentSymbol","params":{}}`)), &out, nil)
	called := false
	s.Handle("textDocument/documentSymbol", func(params json.RawMessage) (any, error) {
		called = true
		return nil, nil
	})
	if err := s.Serve(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if called {
		t.Fatal("handler ran before initialize")
	}
	if !strings.Contains(out.String(), fmt.Sprintf(`"code":%d`, CodeServerNotInitialized)) {
		t.Fatalf("expected server-not-initialized error, got: %s", out.String())
	}
}

func TestHandlerErrorCodes(t *testing.T) {
	tests := []struct {
		name    string
		handler HandlerFunc
		code    int
	}{
		{"invalid params", func(json.RawMessage) (any, error) { return nil, InvalidParams(errors.New("bad uri")) }, CodeInvalidParams},
		{"plain error", func(json.RawMessage) (any, error) { return nil, errors.New("boom") }, CodeInternalError},
		{"panic", func(json.RawMessage) (any, error) { panic("boom") }, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			s := initializedServer(frame(`{"jsonrpc":"2.0","id":2,"method":"work","params":{}}`), &out)
			s.Handle("work", tt.handler)
			if err := s.Serve(); err != nil {
				t.Fatalf("serve: %v", err)
			}
			if !strings.Contains(out.String(), fmt.Sprintf(`"code":%d`, tt.code)) {
				t.Fatalf("expected code %d, got: %s", tt.code, out.String())
			}
		})
	}
}

func TestMalformedBodyKeepsServing(t *testing.T) {
	var out bytes.Buffer
	input := frame(`{"jsonrpc":`) + frame(`{"jsonrpc":"2.0","id":3,"method":"ping"}`)
	s := initializedServer(input, &out)
	s.Handle("ping", func(json.RawMessage) (any, error) { return "pong", nil })
	if err := s.Serve(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, fmt.Sprintf(`"code":%d`, CodeParseError)) {
		t.Fatalf("expected parse error, got: %s", got)
	}
	if !strings.Contains(got, `"result":"pong"`) {
		t.Fatalf("expected the next request to be served, got: %s", got)
	}
}

func TestShutdownAndExit(t *testing.T) {
	var out bytes.Buffer
	input := frame(`{"jsonrpc":"2.0","id":1,"method":"shutdown"}`) +
		frame(`{"jsonrpc":"2.0","id":2,"method":"ping"}`) +
		frame(`{"jsonrpc":"2.0","method":"exit"}`) +
		frame(`{"jsonrpc":"2.0","id":3,"method":"ping"}`)
	s := initializedServer(input, &out)
	s.Handle("shutdown", func(json.RawMessage) (any, error) { return nil, nil })
	pings := 0
	s.Handle("ping", func(json.RawMessage) (any, error) {
		pings++
		return "pong", nil
	})
	if err := s.Serve(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if pings != 0 {
		t.Fatalf("expected no requests served after shutdown, got %d", pings)
	}
	got := out.String()
	if !strings.Contains(got, fmt.Sprintf(`"id":2,"result":null,"error":{"code":%d`, CodeInvalidRequest)) {
		t.Fatalf("expected invalid-request error after shutdown, got: %s", got)
	}
	if strings.Contains(got, `"id":3`) {
		t.Fatalf("expected Serve to stop at exit, got: %s", got)
	}
}

func TestNotify(t *testing.T) {
	var out bytes.Buffer
	s := NewServer(strings.NewReader(""), &out, nil)
	params := PublishDiagnosticsParams{URI: "file:///tmp/Main.java", Diagnostics: []Diagnostic{}}
	if err := s.Notify("textDocument/publishDiagnostics", params); err != nil {
		t.Fatalf("notify: %v", err)
	}

	msg, err := readMessage(&out)
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if msg.Method != "textDocument/publishDiagnostics" || len(msg.ID) != 0 {
		t.Fatalf("unexpected notification %+v", msg)
	}
	var got PublishDiagnosticsParams
	if err := json.Unmarshal(msg.Params, &got); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if got.URI != params.URI || got.Diagnostics == nil {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestReadMessageMissingLength(t *testing.T) {
	if _, err := readMessage(strings.NewReader("X-Other: 1\r\n\r\n{}")); err == nil {
		t.Fatal("expected error for missing Content-Length")
	}
}

func TestReadMessageHeaders(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"initialized"}`
	input := fmt.Sprintf("content-length: %d\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n%s", len(body), body)
	msg, err := readMessage(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if msg.Method != "initialized" {
		t.Fatalf("unexpected method %q", msg.Method)
	}

	if _, err := readMessage(strings.NewReader("Content-Length: abc\r\n\r\n{}")); err == nil || !strings.Contains(err.Error(), "invalid Content-Length") {
		t.Fatalf("expected invalid length error, got %v", err)
	}
}
