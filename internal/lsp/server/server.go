package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jwtly10/mdv"
	iLsp "github.com/jwtly10/mdv/internal/lsp"
	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
)

// MethodCompile returns the compiled component of an open document
const MethodCompile = "mdv/compile"

type Server struct {
	conn *jsonrpc2.Conn
	// tracks canceled request IDs
	cancelMap sync.Map

	// tracking for method request counts
	mu                sync.Mutex
	trackRequestCount map[string]int

	docService *iLsp.DocumentService
}

type Options struct {
	Theme      string
	Compile    mdv.Options
	DocService iLsp.DocumentServiceOptions
}

func (o Options) Validate() error {
	return o.DocService.Validate()
}

func NewServer(options Options) (*Server, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	compiler := mdv.NewCompiler(mdv.NewChromaHighlighter(options.Theme), options.Compile)
	dService, err := iLsp.NewDocumentService(compiler, options.DocService)
	if err != nil {
		return nil, err
	}

	return &Server{
		docService:        dService,
		trackRequestCount: make(map[string]int),
	}, nil
}

// CompileParams is the payload of the mdv/compile request
type CompileParams struct {
	TextDocument lsp.TextDocumentIdentifier `json:"textDocument"`
}

type CompileResult struct {
	Content string   `json:"content"`
	Meta    mdv.Meta `json:"meta"`
}

func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result interface{}, err error) {
	if s.conn == nil {
		s.conn = conn
	}
	slog.Info("received request", "method", req.Method, "id", req.ID)
	s.mu.Lock()
	s.trackRequestCount[req.Method]++
	s.mu.Unlock()

	if _, ok := s.cancelMap.Load(req.ID.String()); ok {
		slog.Debug("request was canceled", "id", req.ID)
		s.cancelMap.Delete(req.ID.String())
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		slog.Info("initializing lsp server")

		kind := lsp.TDSKFull
		return lsp.InitializeResult{
			Capabilities: lsp.ServerCapabilities{
				TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{Kind: &kind},
			},
		}, nil

	case "initialized":
		slog.Info("server initialized")
		return nil, nil

	case "shutdown":
		slog.Info("shutting down")
		s.printDebugStats()
		return nil, nil

	case "exit":
		slog.Info("exiting")
		return nil, conn.Close()

	case "textDocument/didOpen":
		var params lsp.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.docService.Update(params.TextDocument.URI, params.TextDocument.Text)
		return nil, s.publish(ctx, params.TextDocument.URI)

	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		// full sync, the last change holds the whole document
		if n := len(params.ContentChanges); n > 0 {
			s.docService.Update(params.TextDocument.URI, params.ContentChanges[n-1].Text)
		}
		return nil, s.publish(ctx, params.TextDocument.URI)

	case "textDocument/didSave":
		var params lsp.DidSaveTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		out, err := s.docService.Save(ctx, params.TextDocument.URI)
		if err != nil {
			// the diagnostics already describe compile errors
			slog.Debug("failed to write artifacts", "uri", params.TextDocument.URI, "error", err)
		} else if !out.Skipped {
			slog.Info("wrote component", "source", out.Source, "vue", out.Artifacts.Vue)
		}
		return nil, nil

	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.docService.Close(params.TextDocument.URI)
		return nil, s.SendDiagnostics(ctx, lsp.PublishDiagnosticsParams{
			URI:         params.TextDocument.URI,
			Diagnostics: []lsp.Diagnostic{},
		})

	case MethodCompile:
		var params CompileParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		res, err := s.docService.Compile(ctx, params.TextDocument.URI)
		if err != nil {
			return nil, err
		}
		return CompileResult{Content: res.Content, Meta: res.Meta}, nil

	case "$/cancelRequest":
		var params lsp.CancelParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		slog.Debug("canceling request", "id", params.ID)
		s.cancelMap.Store(params.ID.String(), struct{}{})
		return nil, nil

	default:
		if req.Notif {
			slog.Debug("ignoring notification", "method", req.Method)
			return nil, nil
		}
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		}
	}
}

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	return json.Unmarshal(*req.Params, v)
}

func (s *Server) publish(ctx context.Context, uri lsp.DocumentURI) error {
	return s.SendDiagnostics(ctx, lsp.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: s.docService.Diagnose(ctx, uri),
	})
}

func (s *Server) SendDiagnostics(ctx context.Context, params lsp.PublishDiagnosticsParams) error {
	return s.conn.Notify(ctx, "textDocument/publishDiagnostics", params)
}

func (s *Server) printDebugStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for method, count := range s.trackRequestCount {
		slog.Debug(fmt.Sprintf("Method: %-30s Count: %d", method, count))
	}
}
