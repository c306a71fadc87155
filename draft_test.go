package casepipe

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexxia-ai/casepipe/ai"
)

type scriptedGenerator struct {
	responses []string
	calls     int
}

func (g *scriptedGenerator) Complete(_ context.Context, _ []ai.Message, _ ai.TaskCategory, _ *ai.ResponseFormat) (string, error) {
	if g.calls >= len(g.responses) {
		return "", fmt.Errorf("unexpected call %d", g.calls+1)
	}
	resp := g.responses[g.calls]
	g.calls++
	return resp, nil
}

func envelopeJSON(contentLen int) string {
	return fmt.Sprintf(`{"summary": "unpaid wages", "content": %q, "thesis": "wage theft", "area": "labour", "specific_point": "art 12"}`,
		strings.Repeat("x", contentLen))
}

func TestGenerateDraft(t *testing.T) {
	cfg, err := ConfigFor(DocumentComplaint)
	require.NoError(t, err)

	t.Run("FirstAttemptSucceeds", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []string{envelopeJSON(300)}}
		env, err := GenerateDraft(context.Background(), gen, cfg, "facts", "research", nil)
		require.NoError(t, err)
		assert.Equal(t, "unpaid wages", env.Summary)
		assert.Equal(t, "labour", env.LegalArea)
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("ShortContentConsumesAttempt", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []string{envelopeJSON(50), envelopeJSON(300)}}
		env, err := GenerateDraft(context.Background(), gen, cfg, "facts", "", nil)
		require.NoError(t, err)
		assert.Len(t, env.Content, 300)
		assert.Equal(t, 2, gen.calls)
	})

	t.Run("MalformedOutputConsumesAttempt", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []string{"not json at all", envelopeJSON(300)}}
		_, err := GenerateDraft(context.Background(), gen, cfg, "facts", "", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, gen.calls)
	})

	t.Run("LengthCountsCharactersNotBytes", func(t *testing.T) {
		// 150 two-byte characters: 300 bytes but only 150 characters,
		// short of the 200-character minimum.
		short := fmt.Sprintf(`{"summary": "s", "content": %q, "thesis": "", "area": "", "specific_point": ""}`,
			strings.Repeat("á", 150))
		gen := &scriptedGenerator{responses: []string{short, envelopeJSON(300)}}
		_, err := GenerateDraft(context.Background(), gen, cfg, "facts", "", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, gen.calls)
	})

	t.Run("AllAttemptsExhausted", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []string{envelopeJSON(10), envelopeJSON(10), envelopeJSON(10)}}
		_, err := GenerateDraft(context.Background(), gen, cfg, "facts", "", nil)
		assert.ErrorIs(t, err, ErrDraftExhausted)
		assert.Equal(t, 3, gen.calls)
	})

	t.Run("FencedJSONAccepted", func(t *testing.T) {
		fenced := "```json\n" + envelopeJSON(300) + "\n```"
		gen := &scriptedGenerator{responses: []string{fenced}}
		env, err := GenerateDraft(context.Background(), gen, cfg, "facts", "", nil)
		require.NoError(t, err)
		assert.Len(t, env.Content, 300)
	})
}
