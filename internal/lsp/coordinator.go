package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/logging"
)

// ServerCommand describes how to launch a language's LSP server.
type ServerCommand struct {
	Language string
	Command  string
	Args     []string
}

// Location mirrors the subset of an LSP Location this coordinator needs.
type Location struct {
	URI       string
	Line      int // 0-based, as LSP returns it
	Character int
}

// pending is a single in-flight request awaiting its correlated response.
type pending struct {
	resultCh chan json.RawMessage
	errCh    chan error
}

// Server is one long-lived LSP server process for a language.
type Server struct {
	language string
	cmd      *exec.Cmd
	stdin    *bufio.Writer
	stdout   *bufio.Reader

	mu      sync.Mutex
	nextID  int64
	waiting map[int64]*pending

	requestTimeout time.Duration
}

// Coordinator owns one Server per language for the lifetime of an ingest
// (spec §6.5: "constructed at ingest start, torn down after the last
// worker exits").
type Coordinator struct {
	servers map[string]*Server
	timeout time.Duration
}

// NewCoordinator starts a server for every entry in commands.
func NewCoordinator(ctx context.Context, rootURI string, commands []ServerCommand, timeout time.Duration) (*Coordinator, error) {
	c := &Coordinator{servers: make(map[string]*Server), timeout: timeout}
	for _, sc := range commands {
		s, err := startServer(sc, timeout)
		if err != nil {
			logging.Warn("lsp: failed to start server, cross-reference edges for this language will be skipped",
				"language", sc.Language, "error", err)
			continue
		}
		if err := s.initialize(ctx, rootURI); err != nil {
			logging.Warn("lsp: initialize handshake failed", "language", sc.Language, "error", err)
			s.Close(ctx)
			continue
		}
		c.servers[sc.Language] = s
	}
	return c, nil
}

func startServer(sc ServerCommand, timeout time.Duration) (*Server, error) {
	cmd := exec.Command(sc.Command, sc.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	s := &Server{
		language:       sc.Language,
		cmd:            cmd,
		stdin:          bufio.NewWriter(stdin),
		stdout:         bufio.NewReader(stdout),
		waiting:        make(map[int64]*pending),
		requestTimeout: timeout,
	}
	go s.readLoop()
	return s, nil
}

func (s *Server) readLoop() {
	for {
		raw, err := readMessage(s.stdout)
		if err != nil {
			s.mu.Lock()
			for id, p := range s.waiting {
				p.errCh <- fmt.Errorf("lsp server closed: %w", err)
				delete(s.waiting, id)
			}
			s.mu.Unlock()
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			continue
		}
		s.mu.Lock()
		p, ok := s.waiting[resp.ID]
		if ok {
			delete(s.waiting, resp.ID)
		}
		s.mu.Unlock()
		if !ok {
			continue
		}
		if resp.Error != nil {
			p.errCh <- resp.Error
		} else {
			p.resultCh <- resp.Result
		}
	}
}

func (s *Server) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&s.nextID, 1)
	p := &pending{resultCh: make(chan json.RawMessage, 1), errCh: make(chan error, 1)}

	s.mu.Lock()
	s.waiting[id] = p
	writeErr := writeMessage(s.stdin, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if writeErr == nil {
		writeErr = s.stdin.Flush()
	}
	s.mu.Unlock()

	if writeErr != nil {
		s.mu.Lock()
		delete(s.waiting, id)
		s.mu.Unlock()
		return nil, writeErr
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	select {
	case res := <-p.resultCh:
		return res, nil
	case err := <-p.errCh:
		return nil, err
	case <-timeoutCtx.Done():
		s.mu.Lock()
		delete(s.waiting, id)
		s.mu.Unlock()
		return nil, blarerrors.LspTimeoutError(fmt.Sprintf("%s timed out after %s", method, s.requestTimeout))
	}
}

func (s *Server) notify(method string, params any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeMessage(s.stdin, rpcNotification{JSONRPC: "2.0", Method: method, Params: params}); err != nil {
		return err
	}
	return s.stdin.Flush()
}

func (s *Server) initialize(ctx context.Context, rootURI string) error {
	params := map[string]any{
		"processId":    nil,
		"rootUri":      rootURI,
		"capabilities": map[string]any{},
	}
	if _, err := s.call(ctx, "initialize", params); err != nil {
		return err
	}
	return s.notify("initialized", map[string]any{})
}

// Close sends shutdown/exit and releases the subprocess (spec §6.2).
func (s *Server) Close(ctx context.Context) {
	_, _ = s.call(ctx, "shutdown", nil)
	_ = s.notify("exit", nil)
	_ = s.cmd.Wait()
}

// DidOpen notifies the server that a file is now open, required before any
// definition/references request against it.
func (c *Coordinator) DidOpen(ctx context.Context, language, uri, languageID, text string) error {
	s, ok := c.servers[language]
	if !ok {
		return nil
	}
	return s.notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{
			"uri": uri, "languageId": languageID, "version": 1, "text": text,
		},
	})
}

// Definition resolves the symbol at (uri, line, character) to zero or more
// target Locations. On timeout or error it returns nil: the
// resolver emits no edge rather than crashing the run (spec §4.4).
func (c *Coordinator) Definition(ctx context.Context, language, uri string, line, character int) []Location {
	s, ok := c.servers[language]
	if !ok {
		return nil
	}
	raw, err := s.call(ctx, "textDocument/definition", map[string]any{
		"textDocument": map[string]any{"uri": uri},
		"position":     map[string]any{"line": line, "character": character},
	})
	if err != nil {
		logging.Debug("lsp: definition request failed", "language", language, "uri", uri, "error", err)
		return nil
	}
	return parseLocations(raw)
}

// References resolves the symbol at (uri, line, character) to zero or more
// referencing Locations, used for USES/ASSIGNS enrichment.
func (c *Coordinator) References(ctx context.Context, language, uri string, line, character int) []Location {
	s, ok := c.servers[language]
	if !ok {
		return nil
	}
	raw, err := s.call(ctx, "textDocument/references", map[string]any{
		"textDocument": map[string]any{"uri": uri},
		"position":     map[string]any{"line": line, "character": character},
		"context":      map[string]any{"includeDeclaration": false},
	})
	if err != nil {
		logging.Debug("lsp: references request failed", "language", language, "uri", uri, "error", err)
		return nil
	}
	return parseLocations(raw)
}

func parseLocations(raw json.RawMessage) []Location {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var single struct {
		URI   string `json:"uri"`
		Range struct {
			Start struct{ Line, Character int } `json:"start"`
		} `json:"range"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.URI != "" {
		return []Location{{URI: single.URI, Line: single.Range.Start.Line, Character: single.Range.Start.Character}}
	}

	var many []struct {
		URI   string `json:"uri"`
		Range struct {
			Start struct{ Line, Character int } `json:"start"`
		} `json:"range"`
	}
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil
	}
	out := make([]Location, 0, len(many))
	for _, m := range many {
		out = append(out, Location{URI: m.URI, Line: m.Range.Start.Line, Character: m.Range.Start.Character})
	}
	return out
}

// Shutdown tears down every running server (spec §6.5).
func (c *Coordinator) Shutdown(ctx context.Context) {
	for _, s := range c.servers {
		s.Close(ctx)
	}
}
