package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// JSON-RPC and LSP error codes used by the server.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeServerNotInitialized = -32002
)

// ResponseError is a handler error carrying its JSON-RPC code. Handlers
// returning any other error are answered with CodeInternalError.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// InvalidParams wraps a params decoding or validation failure.
func InvalidParams(err error) error {
	return &ResponseError{Code: CodeInvalidParams, Message: err.Error()}
}

// HandlerFunc processes a JSON-RPC request and returns a result or error.
type HandlerFunc func(params json.RawMessage) (any, error)

// NotifyFunc processes a JSON-RPC notification (no response expected).
type NotifyFunc func(params json.RawMessage)

// Server implements the JSON-RPC 2.0 transport for LSP and the
// initialize/shutdown/exit lifecycle around the registered handlers.
type Server struct {
	reader   *bufio.Reader
	writer   io.Writer
	log      *slog.Logger
	handlers map[string]HandlerFunc
	notifs   map[string]NotifyFunc
	outMu    sync.Mutex

	initialized bool
	shutdown    bool
	exited      bool
}

// NewServer returns a server reading framed requests from in and writing
// responses and notifications to out. A nil logger discards records.
func NewServer(in io.Reader, out io.Writer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		reader:   bufio.NewReader(in),
		writer:   out,
		log:      log,
		handlers: make(map[string]HandlerFunc),
		notifs:   make(map[string]NotifyFunc),
	}
}

func (s *Server) Handle(method string, fn HandlerFunc) {
	s.handlers[method] = fn
}

func (s *Server) OnNotify(method string, fn NotifyFunc) {
	s.notifs[method] = fn
}

// Serve reads messages until EOF or the exit notification.
func (s *Server) Serve() error {
	for !s.exited {
		err := s.ServeOnce()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ServeOnce reads and handles a single message. Framing errors end the
// session; a body that is not valid JSON is answered with a parse error.
func (s *Server) ServeOnce() error {
	body, err := readFrame(s.reader)
	if err != nil {
		return err
	}
	var msg rpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Warn("malformed message", "error", err)
		return s.sendError(json.RawMessage("null"), CodeParseError, err.Error())
	}

	isNotification := len(msg.ID) == 0 || string(msg.ID) == "null"
	if isNotification {
		s.dispatchNotification(msg)
		return nil
	}
	return s.dispatchRequest(msg)
}

func (s *Server) dispatchNotification(msg rpcMessage) {
	if msg.Method == "exit" {
		s.exited = true
	}
	fn, ok := s.notifs[msg.Method]
	if !ok {
		s.log.Debug("notification ignored", "method", msg.Method)
		return
	}
	if s.shutdown && msg.Method != "exit" {
		s.log.Debug("notification after shutdown", "method", msg.Method)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notification panicked", "method", msg.Method, "panic", r)
		}
	}()
	fn(msg.Params)
}

func (s *Server) dispatchRequest(msg rpcMessage) error {
	switch {
	case s.shutdown:
		return s.sendError(msg.ID, CodeInvalidRequest, "server is shutting down")
	case !s.initialized && msg.Method != "initialize":
		return s.sendError(msg.ID, CodeServerNotInitialized, "server not initialized")
	}

	fn, ok := s.handlers[msg.Method]
	if !ok {
		s.log.Warn("method not found", "method", msg.Method)
		return s.sendError(msg.ID, CodeMethodNotFound, "method not found: "+msg.Method)
	}

	result, handlerErr := s.call(fn, msg.Params)
	if handlerErr != nil {
		code := CodeInternalError
		message := handlerErr.Error()
		var rpcErr *ResponseError
		if errors.As(handlerErr, &rpcErr) {
			code, message = rpcErr.Code, rpcErr.Message
		}
		s.log.Error("request failed", "method", msg.Method, "code", code, "error", message)
		return s.sendError(msg.ID, code, message)
	}

	switch msg.Method {
	case "initialize":
		s.initialized = true
	case "shutdown":
		s.shutdown = true
	}
	return s.sendResult(msg.ID, result)
}

func (s *Server) call(fn HandlerFunc, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(params)
}

func (s *Server) sendResult(id json.RawMessage, result any) error {
	resp := rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return writeMessage(s.writer, resp)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	resp := rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return writeMessage(s.writer, resp)
}

// Notify sends a server-initiated notification such as diagnostics.
func (s *Server) Notify(method string, params any) error {
	msg := struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{JSONRPC: "2.0", Method: method, Params: params}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return writeMessage(s.writer, msg)
}

// readMessage reads and decodes one Content-Length framed message.
func readMessage(r io.Reader) (rpcMessage, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	body, err := readFrame(br)
	if err != nil {
		return rpcMessage{}, err
	}
	var msg rpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return rpcMessage{}, err
	}
	return msg, nil
}

// readFrame reads the headers and body of one message. Header names are
// matched case-insensitively.
func readFrame(br *bufio.Reader) ([]byte, error) {
	contentLen := -1
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", strings.TrimSpace(value))
		}
		contentLen = n
	}
	if contentLen <= 0 {
		return nil, fmt.Errorf("missing Content-Length")
	}
	body := make([]byte, contentLen)
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, err
	}
	return body, nil
}

// writeMessage writes a Content-Length framed JSON-RPC message.
func writeMessage(w io.Writer, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
