package mcphost

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aporia-systems/aporia"
	"github.com/aporia-systems/aporia/internal/provenance"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	p, err := aporia.NewPolicy()
	require.NoError(t, err)
	clk := aporia.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	roleFn := func(aporia.AgentID) aporia.Role { return aporia.RoleI }
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	signer, err := provenance.NewSigner("", "")
	require.NoError(t, err)
	return New(nil, aporia.Sigma{}, p, clk, roleFn, aporia.DefaultSemanticProvider{}, logger, signer, nil, "test")
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

func TestHandleIncorporateThenLicense(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	result, err := s.handleIncorporate(ctx, toolRequest("aporia_incorporate", map[string]any{
		"target":  "widget-1",
		"context": "prod",
		"kind":    "definitional",
		"claim":   "widget-1 means the checkout button",
		"valence": 1.0,
		"trust":   0.9,
		"source":  "agent-a",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var incorporated map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &incorporated))
	assert.Contains(t, incorporated, "nu_raw")

	licenseResult, err := s.handleLicense(ctx, toolRequest("aporia_license", map[string]any{
		"target":  "widget-1",
		"context": "prod",
	}))
	require.NoError(t, err)
	require.False(t, licenseResult.IsError, resultText(t, licenseResult))

	var decision map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, licenseResult)), &decision))
	assert.Contains(t, decision, "licensed")
	assert.Contains(t, decision, "reason")
}

func TestHandleIncorporateRequiresTargetAndContext(t *testing.T) {
	s := testServer(t)
	result, err := s.handleIncorporate(context.Background(), toolRequest("aporia_incorporate", map[string]any{
		"kind":  "epistemic",
		"claim": "missing target",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleQueryNextRanksIncorporatedStates(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, err := s.handleIncorporate(ctx, toolRequest("aporia_incorporate", map[string]any{
		"target":  "widget-2",
		"context": "prod",
		"kind":    "epistemic",
		"claim":   "widget-2 ships in v2",
		"valence": 0.5,
		"trust":   0.8,
		"source":  "agent-b",
	}))
	require.NoError(t, err)

	result, err := s.handleQueryNext(ctx, toolRequest("aporia_query_next", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp struct {
		Ranked []map[string]any `json:"ranked"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Len(t, resp.Ranked, 1)
}

func TestHandleRecontextualizeRejectsSameContext(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, err := s.handleIncorporate(ctx, toolRequest("aporia_incorporate", map[string]any{
		"target":  "widget-3",
		"context": "prod",
		"kind":    "epistemic",
		"claim":   "widget-3 is stable",
		"valence": 0.5,
		"trust":   0.8,
		"source":  "agent-c",
	}))
	require.NoError(t, err)

	result, err := s.handleRecontextualize(ctx, toolRequest("aporia_recontextualize", map[string]any{
		"target":      "widget-3",
		"context":     "prod",
		"new_context": "prod",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleExportTraceSignsAndClearsByDefault(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, err := s.handleIncorporate(ctx, toolRequest("aporia_incorporate", map[string]any{
		"target":  "widget-4",
		"context": "prod",
		"kind":    "epistemic",
		"claim":   "widget-4 is in beta",
		"valence": 0.5,
		"trust":   0.8,
		"source":  "agent-d",
	}))
	require.NoError(t, err)
	require.Equal(t, 1, s.tracer.Len())

	result, err := s.handleExportTrace(ctx, toolRequest("aporia_export_trace", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var exported map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &exported))
	assert.EqualValues(t, 1, exported["record_count"])
	assert.NotEmpty(t, exported["merkle_root"])
	assert.NotEmpty(t, exported["signed_batch"])
	assert.Equal(t, 0, s.tracer.Len())
}

func TestHandleExportTraceClearFalseKeepsRecords(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, err := s.handleIncorporate(ctx, toolRequest("aporia_incorporate", map[string]any{
		"target":  "widget-5",
		"context": "prod",
		"kind":    "epistemic",
		"claim":   "widget-5 ships soon",
		"valence": 0.5,
		"trust":   0.8,
		"source":  "agent-e",
	}))
	require.NoError(t, err)

	result, err := s.handleExportTrace(ctx, toolRequest("aporia_export_trace", map[string]any{"clear": false}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, 1, s.tracer.Len())
}
