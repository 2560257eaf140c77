package mcphost

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/aporia-systems/aporia"
	"github.com/aporia-systems/aporia/internal/provenance"
	"github.com/aporia-systems/aporia/internal/telemetry"
)

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("aporia_incorporate",
			mcplib.WithDescription(`Fold a piece of evidence into a target's definedness state.

WHEN TO USE: whenever you learn something relevant to how well-defined a
target is — a fact about it (epistemic), a clarification of what it even
means (definitional), or a note about how it was produced (procedural).

Returns the state's updated nu_raw and nu (clamped with penalties) after
incorporation.`),
			mcplib.WithString("target", mcplib.Description("Target identifier"), mcplib.Required()),
			mcplib.WithString("context", mcplib.Description("Context identifier"), mcplib.Required()),
			mcplib.WithString("kind", mcplib.Description(`One of "epistemic", "definitional", "procedural"`), mcplib.Required()),
			mcplib.WithString("claim", mcplib.Description("The evidence's content"), mcplib.Required()),
			mcplib.WithNumber("valence", mcplib.Description("Direction and strength: positive supports the target, negative contradicts it, -1..1"), mcplib.Required(), mcplib.Min(-1), mcplib.Max(1)),
			mcplib.WithNumber("trust", mcplib.Description("Source trust, 0..1"), mcplib.Required(), mcplib.Min(0), mcplib.Max(1)),
			mcplib.WithString("source", mcplib.Description("Agent ID submitting this evidence"), mcplib.Required()),
		),
		s.handleIncorporate,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("aporia_license",
			mcplib.WithDescription(`Check whether a target/context is licensed for truth evaluation.

WHEN TO USE: before committing to evaluate a claim about a target. If
licensed=false, check "reason": structurally_vague means more definitional
evidence is needed; null_classified means the target is being actively
treated as undefined; penalty_block means a conflict or other situational
penalty is suppressing evaluation even though raw definedness is adequate.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("target", mcplib.Description("Target identifier"), mcplib.Required()),
			mcplib.WithString("context", mcplib.Description("Context identifier"), mcplib.Required()),
		),
		s.handleLicense,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("aporia_query_next",
			mcplib.WithDescription(`Rank all known (target, context) pairs by definedness, least-defined (highest nu) first.

WHEN TO USE: to decide what to refine next, or to see the overall shape of
the information state.`),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleQueryNext,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("aporia_conflict",
			mcplib.WithDescription(`Recompute the conflict penalty for a target/context from its current
evidence, respecting the configured cooldown.`),
			mcplib.WithString("target", mcplib.Description("Target identifier"), mcplib.Required()),
			mcplib.WithString("context", mcplib.Description("Context identifier"), mcplib.Required()),
		),
		s.handleConflict,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("aporia_recontextualize",
			mcplib.WithDescription(`Move a target's evidence to a new context, re-deriving trust under the
new context's role function. Recontextualizing to the state's own current
context is rejected.`),
			mcplib.WithString("target", mcplib.Description("Target identifier"), mcplib.Required()),
			mcplib.WithString("context", mcplib.Description("Current context identifier"), mcplib.Required()),
			mcplib.WithString("new_context", mcplib.Description("Destination context identifier"), mcplib.Required()),
		),
		s.handleRecontextualize,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("aporia_export_trace",
			mcplib.WithDescription(`Export the refinement trace recorded so far as a tamper-evident batch:
a Merkle root over every RefinementRecord, signed with Ed25519 so a
verifier can detect any alteration after the export leaves this process.

WHEN TO USE: when a host needs to hand a trace off to storage or to another
system and wants proof it wasn't tampered with in transit. By default the
exported records are cleared from the in-memory trace afterward.`),
			mcplib.WithBoolean("clear", mcplib.Description("Clear the trace after export (default true)")),
		),
		s.handleExportTrace,
	)
}

func (s *Server) handleIncorporate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	target := request.GetString("target", "")
	ctxID := request.GetString("context", "")
	kind := request.GetString("kind", "")
	claim := request.GetString("claim", "")
	source := request.GetString("source", "")
	valence := request.GetFloat("valence", 0)
	trust := request.GetFloat("trust", 0)

	if target == "" || ctxID == "" {
		return errorResult("target and context are required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	st := s.sigma.Get(aporia.TargetID(target), aporia.ContextID(ctxID), s.policy, now)

	item := aporia.EvidenceItem{
		ID:      aporia.EvidenceID(fmt.Sprintf("%s-%s-%d", source, kind, now.UnixNano())),
		Kind:    aporia.EvidenceKind(kind),
		Claim:   claim,
		Valence: valence,
		Src:     aporia.AgentID(source),
		Time:    now.UnixNano(),
		Trust:   trust,
	}

	var out aporia.State
	var record aporia.RefinementRecord
	err := telemetry.Operator(ctx, "Incorporate", target, ctxID, func(ctx context.Context) error {
		var opErr error
		out, record, opErr = aporia.Incorporate(ctx, st, []aporia.EvidenceItem{item}, s.policy, s.clk, s.roleFn, s.sem)
		return opErr
	})
	if err != nil {
		return errorResult(fmt.Sprintf("incorporate failed: %v", err)), nil
	}

	s.sigma = s.sigma.With(out)
	s.tracer.Append(record)
	if s.store != nil {
		if saveErr := s.store.SaveState(ctx, out); saveErr != nil {
			s.logger.Warn("mcphost: save state after incorporate failed", "error", saveErr, "target", target, "context", ctxID)
		}
	}

	return jsonResult(map[string]any{
		"nu_raw":   out.NuRaw,
		"nu":       out.Nu(s.policy.PenaltyMode),
		"operator": record.Operator,
		"evidence": record.EvidenceAdded,
	}), nil
}

func (s *Server) handleLicense(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	target := request.GetString("target", "")
	ctxID := request.GetString("context", "")
	if target == "" || ctxID == "" {
		return errorResult("target and context are required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.sigma.Get(aporia.TargetID(target), aporia.ContextID(ctxID), s.policy, s.clk.Now())
	decision := aporia.License(st, s.policy)

	return jsonResult(map[string]any{
		"licensed": decision.Licensed,
		"nu_raw":   decision.NuRaw,
		"nu":       decision.Nu,
		"reason":   decision.Reason,
	}), nil
}

func (s *Server) handleQueryNext(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranked := aporia.QueryNext(s.sigma, s.policy)
	out := make([]map[string]any, len(ranked))
	for i, r := range ranked {
		out[i] = map[string]any{
			"target":  string(r.Key.Target),
			"context": string(r.Key.Ctx),
			"nu_raw":  r.State.NuRaw,
			"nu":      r.State.Nu(s.policy.PenaltyMode),
		}
	}
	return jsonResult(map[string]any{"ranked": out}), nil
}

func (s *Server) handleConflict(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	target := request.GetString("target", "")
	ctxID := request.GetString("context", "")
	if target == "" || ctxID == "" {
		return errorResult("target and context are required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.sigma.Get(aporia.TargetID(target), aporia.ContextID(ctxID), s.policy, s.clk.Now())

	var out aporia.State
	var record aporia.RefinementRecord
	_ = telemetry.Operator(ctx, "Conflict", target, ctxID, func(ctx context.Context) error {
		out, record = aporia.Conflict(ctx, st, s.policy, s.clk)
		return nil
	})

	s.sigma = s.sigma.With(out)
	s.tracer.Append(record)
	if s.store != nil {
		if saveErr := s.store.SaveState(ctx, out); saveErr != nil {
			s.logger.Warn("mcphost: save state after conflict failed", "error", saveErr, "target", target, "context", ctxID)
		}
	}

	return jsonResult(map[string]any{
		"nu_raw":          out.NuRaw,
		"nu":              out.Nu(s.policy.PenaltyMode),
		"penalties_delta": record.PenaltiesDelta,
	}), nil
}

func (s *Server) handleRecontextualize(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	target := request.GetString("target", "")
	ctxID := request.GetString("context", "")
	newCtx := request.GetString("new_context", "")
	if target == "" || ctxID == "" || newCtx == "" {
		return errorResult("target, context, and new_context are required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.sigma.Get(aporia.TargetID(target), aporia.ContextID(ctxID), s.policy, s.clk.Now())

	var out aporia.State
	var record aporia.RefinementRecord
	var opErr error
	err := telemetry.Operator(ctx, "Recontextualize", target, ctxID, func(ctx context.Context) error {
		out, record, opErr = aporia.Recontextualize(ctx, st, aporia.ContextID(newCtx), s.roleFn, 0, s.policy, s.clk, s.sem)
		return opErr
	})
	if err != nil {
		return errorResult(fmt.Sprintf("recontextualize failed: %v", err)), nil
	}

	s.sigma = s.sigma.With(out)
	s.tracer.Append(record)
	if s.store != nil {
		if saveErr := s.store.SaveState(ctx, out); saveErr != nil {
			s.logger.Warn("mcphost: save state after recontextualize failed", "error", saveErr, "target", target, "new_context", newCtx)
		}
	}

	return jsonResult(map[string]any{
		"nu_raw": out.NuRaw,
		"nu":     out.Nu(s.policy.PenaltyMode),
		"moved":  true,
		"at":     time.Now().UTC().Format(time.RFC3339),
	}), nil
}

func (s *Server) handleExportTrace(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	clear := request.GetBool("clear", true)

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.tracer.Records()
	out := map[string]any{
		"record_count": len(records),
		"merkle_root":  provenance.BatchRoot(records),
	}

	if len(records) > 0 && s.signer != nil {
		token, err := s.signer.SignBatch(records)
		if err != nil {
			return errorResult(fmt.Sprintf("sign trace batch: %v", err)), nil
		}
		out["signed_batch"] = token
	}

	if len(records) > 0 && len(s.sealKey) > 0 {
		data, err := json.Marshal(records)
		if err != nil {
			return errorResult(fmt.Sprintf("marshal trace batch: %v", err)), nil
		}
		sealed, err := provenance.Seal(s.sealKey, data)
		if err != nil {
			return errorResult(fmt.Sprintf("seal trace batch: %v", err)), nil
		}
		out["sealed_batch"] = hex.EncodeToString(sealed)
	}

	if clear {
		s.tracer.Reset()
	}

	return jsonResult(out), nil
}
