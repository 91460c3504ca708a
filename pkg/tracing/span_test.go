package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTreeIsLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "GET /regions", "req-1")
	_, child := StartChildSpan(ctx, "cache.lookup")
	child.SetAttr("hit", false)
	child.End()
	root.End()
	root.Log(ctx, logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "GET /regions", first["span"])
	assert.Equal(t, "cache.lookup", second["span"])
	assert.Equal(t, "req-1", second["trace_id"])
	assert.Equal(t, false, second["hit"])
	assert.EqualValues(t, 1, second["depth"])
}

func TestSpanLogSkippedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, root := StartSpan(context.Background(), "GET /regions", "req-1")
	root.End()
	root.Log(ctx, logger)
	assert.Zero(t, buf.Len())
}

func TestChildWithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	assert.Same(t, span, SpanFromContext(ctx))
	assert.Empty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}
