package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/bblang/bytecode"
	"github.com/chazu/bblang/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "bblang-lsp"

var log = commonlog.GetLogger("bblang.lsp")

// sourceKeywords are completed alongside instruction mnemonics.
var sourceKeywords = []string{"fn", "main", "unsafe"}

// LspServer publishes compiler diagnostics and instruction help to editors.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("bblang LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// document returns the stored text for uri.
func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(word), nil
}

func complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	upper := strings.ToUpper(prefix)

	for _, name := range compiler.Mnemonics() {
		if !strings.HasPrefix(name, upper) {
			continue
		}
		kind := protocol.CompletionItemKindFunction
		detail, _ := compiler.Usage(name)
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	for _, kw := range sourceKeywords {
		if !strings.HasPrefix(kw, strings.ToLower(prefix)) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		kwCopy := kw
		items = append(items, protocol.CompletionItem{
			Label:      kw,
			Kind:       &kind,
			InsertText: &kwCopy,
		})
	}

	return items
}

func hover(word string) *protocol.Hover {
	var b strings.Builder

	if usage, ok := compiler.Usage(word); ok {
		fmt.Fprintf(&b, "**%s**\n\n`%s`\n\nEncodes as:\n", strings.ToUpper(word), usage)
		for _, op := range compiler.Encodings(word) {
			fmt.Fprintf(&b, "- `%s` (0x%02x) %s\n", op, byte(op), op.Layout())
		}
	} else if op, ok := bytecode.LookupMnemonic(word); ok {
		fmt.Fprintf(&b, "**%s** (0x%02x)\n\nOperands: %s\n\n", op, byte(op), op.Layout())
		b.WriteString("Recognised by the disassembler; the compiler does not emit it.")
	} else if isRegister(word) {
		fmt.Fprintf(&b, "**register %s**\n\nOnly valid inside an `unsafe` block.", word)
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func isRegister(word string) bool {
	if len(word) < 2 || (word[0] != 'R' && word[0] != 'r') {
		return false
	}
	for _, ch := range word[1:] {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text and reports analyzer warnings plus the first
// error, if any.
func diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	prog, err := compiler.Parse(text)
	if err == nil {
		for _, w := range compiler.Analyze(prog) {
			diagnostics = append(diagnostics, newDiagnostic(text, w.Pos,
				protocol.DiagnosticSeverityWarning, "semantic", w.Msg))
		}
		_, err = compiler.Emit(prog)
	}
	if err == nil {
		return diagnostics
	}

	var pe *compiler.ParseError
	var ee *compiler.EncodeError
	switch {
	case errors.As(err, &pe):
		diagnostics = append(diagnostics, newDiagnostic(text, pe.Pos,
			protocol.DiagnosticSeverityError, "parse", pe.Msg))
	case errors.As(err, &ee):
		diagnostics = append(diagnostics, newDiagnostic(text, ee.Pos,
			protocol.DiagnosticSeverityError, "encode", ee.Msg))
	default:
		// Program-level errors such as a missing main have no position.
		diagnostics = append(diagnostics, newDiagnostic(text, compiler.Position{Line: 1, Column: 1},
			protocol.DiagnosticSeverityError, "program", err.Error()))
	}
	return diagnostics
}

func newDiagnostic(text string, pos compiler.Position, severity protocol.DiagnosticSeverity, code, msg string) protocol.Diagnostic {
	source := lspName
	return protocol.Diagnostic{
		Range:    tokenRange(text, pos),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: code},
		Source:   &source,
		Message:  msg,
	}
}

// tokenRange returns the range of the identifier starting at pos, or a
// single character when there is none.
func tokenRange(text string, pos compiler.Position) protocol.Range {
	line := uint32(max(pos.Line-1, 0))
	start := uint32(max(pos.Column-1, 0))
	end := start + 1

	lines := strings.Split(text, "\n")
	if int(line) < len(lines) {
		runes := []rune(lines[line])
		n := int(start)
		for n < len(runes) && isWordChar(runes[n]) {
			n++
		}
		if n > int(start) {
			end = uint32(n)
		}
	}

	return protocol.Range{
		Start: protocol.Position{Line: line, Character: start},
		End:   protocol.Position{Line: line, Character: end},
	}
}

// --- Text extraction helpers ---

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// cursorLine returns the runes of the cursor's line and the rune index the
// cursor sits at. LSP positions count UTF-16 code units.
func cursorLine(text string, pos protocol.Position) ([]rune, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil, 0, false
	}
	runes := []rune(lines[pos.Line])

	col, units := 0, 0
	for col < len(runes) && units < int(pos.Character) {
		units += utf16.RuneLen(runes[col])
		col++
	}
	return runes, col, true
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := cursorLine(text, pos)
	if !ok {
		return ""
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}

	return string(line[start:col])
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := cursorLine(text, pos)
	if !ok {
		return ""
	}

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(line[end]) {
		end++
	}

	return string(line[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}
