// Package mcphost implements a Model Context Protocol server exposing the
// definedness calculus's refinement operators and licensing query as MCP
// tools, so MCP-compatible agents can incorporate evidence and ask whether
// a target is licensed for truth evaluation without embedding the engine
// themselves.
package mcphost

import (
	"log/slog"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/aporia-systems/aporia"
	"github.com/aporia-systems/aporia/internal/provenance"
	"github.com/aporia-systems/aporia/internal/storage"
)

const serverInstructions = `You have access to aporia, a definedness-calculus engine for tracking
how well-specified a target is before an agent commits to evaluating it.

WORKFLOW:

1. BEFORE evaluating a claim about some target: call aporia_license with the
   target and context. If licensed=false, the target is not yet well-defined
   enough (structurally vague or null-classified) — gather more evidence
   instead of guessing.

2. When you learn something relevant: call aporia_incorporate with the
   evidence (kind, claim, valence, trust) to refine the target's state.

3. Use aporia_query_next to see which targets most need attention, ranked by
   definedness.

TOOLS:
- aporia_incorporate: fold new evidence into a target's state
- aporia_license: check whether a target/context is licensed for evaluation
- aporia_query_next: rank known targets by definedness, least-defined first
- aporia_conflict: recompute the conflict penalty from current evidence
- aporia_recontextualize: move a target's evidence to a new context
- aporia_export_trace: export the refinement trace recorded so far as a
  signed, tamper-evident batch

Evidence kinds are "epistemic" (claims about the world), "definitional"
(claims about what the target even means), and "procedural" (claims about
how it was produced). Valence is in [-1, 1], trust in [0, 1].`

// Server wraps the MCP server with the engine's policy, clock, storage, and
// in-memory Sigma.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     storage.Store
	policy    aporia.Policy
	clk       aporia.Clock
	roleFn    aporia.RoleFunc
	sem       aporia.SemanticDefinednessProvider
	logger    *slog.Logger
	signer    *provenance.Signer
	sealKey   []byte
	tracer    *aporia.Tracer

	mu    sync.Mutex
	sigma aporia.Sigma
}

// New creates and configures an MCP server exposing the engine's operators
// and query as tools. sigma is the initial in-memory state the server
// mutates; each mutating tool call saves the state it produced to store.
// signer signs trace exports;
// sealKey, if non-nil, additionally seals them for confidentiality.
func New(store storage.Store, sigma aporia.Sigma, p aporia.Policy, clk aporia.Clock, roleFn aporia.RoleFunc, sem aporia.SemanticDefinednessProvider, logger *slog.Logger, signer *provenance.Signer, sealKey []byte, version string) *Server {
	s := &Server{
		store:   store,
		policy:  p,
		clk:     clk,
		roleFn:  roleFn,
		sem:     sem,
		logger:  logger,
		signer:  signer,
		sealKey: sealKey,
		tracer:  aporia.NewTracer(),
		sigma:   sigma,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"aporia",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
