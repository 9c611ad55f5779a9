package conversation

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/internal/testutil"
)

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewInMemoryStore()
	c1, _ := src.Create(ctx, "one")
	c2, _ := src.Create(ctx, "two")
	_, err := src.Append(ctx, c1.ID, testutil.NewDiscussionBuilder("one").Message("A", "hello", 1).Answer("1").Build())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Export(ctx, src, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), `"version": 1`)

	dst := NewInMemoryStore()
	n, err = Import(ctx, dst, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := dst.Get(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)
	require.Len(t, got.Discussions, 1)
	assert.Equal(t, "hello", got.Discussions[0].Messages[0].Content)
	assert.Equal(t, "1", got.Discussions[0].Answer())

	_, err = dst.Get(ctx, c2.ID)
	assert.NoError(t, err)
}

func TestImport_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"wrong version", `{"version":2,"conversations":[]}`},
		{"missing id", `{"version":1,"conversations":[{"title":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(context.Background(), NewInMemoryStore(), strings.NewReader(tt.body))
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}
