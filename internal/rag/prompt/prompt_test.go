package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ragforge/internal/rag/ragerr"
)

func sampleTemplate() Template {
	return Template{
		Name:       "rag-default",
		Version:    "1.0.0",
		SystemText: "You are a helpful assistant.",
		UserText:   "Context:\n{{context}}\n\nQuestion: {{question}}",
		Variables: []VariableSchema{
			{Name: "context", Required: true},
			{Name: "question", Required: true},
		},
	}
}

func TestNewEngine_RejectsUndeclaredVariable(t *testing.T) {
	tpl := sampleTemplate()
	tpl.UserText += " {{oops}}"
	_, err := NewEngine([]Template{tpl})
	require.Equal(t, ragerr.InvalidInput, ragerr.KindOf(err))
}

func TestNewEngine_RejectsDuplicateVersion(t *testing.T) {
	tpl := sampleTemplate()
	_, err := NewEngine([]Template{tpl, tpl})
	require.Equal(t, ragerr.InvalidInput, ragerr.KindOf(err))
}

func TestLookup_DefaultsToLatestNonDeprecated(t *testing.T) {
	old := sampleTemplate()
	old.Version = "1.0.0"
	newer := sampleTemplate()
	newer.Version = "2.0.0"
	deprecated := sampleTemplate()
	deprecated.Version = "3.0.0"
	deprecated.Deprecated = true

	e, err := NewEngine([]Template{old, newer, deprecated})
	require.NoError(t, err)

	got, err := e.Lookup("rag-default", "")
	require.NoError(t, err)
	require.Equal(t, "2.0.0", got.Version)

	got, err = e.Lookup("rag-default", "1.0.0")
	require.NoError(t, err)
	require.Equal(t, "1.0.0", got.Version)

	_, err = e.Lookup("missing", "")
	require.Equal(t, ragerr.NotFound, ragerr.KindOf(err))
}

func TestRender_StrictSubstitution(t *testing.T) {
	tpl := sampleTemplate()
	out, err := Render(tpl, map[string]string{"context": "the sky is blue", "question": "what color is the sky"})
	require.NoError(t, err)
	require.Contains(t, out.User, "the sky is blue")
	require.Contains(t, out.User, "what color is the sky")
}

func TestRender_MissingRequiredVariable(t *testing.T) {
	tpl := sampleTemplate()
	_, err := Render(tpl, map[string]string{"context": "x"})
	require.Equal(t, ragerr.TemplateVariableMissing, ragerr.KindOf(err))
}

func TestRender_UnknownVariable(t *testing.T) {
	tpl := sampleTemplate()
	_, err := Render(tpl, map[string]string{"context": "x", "question": "y", "bogus": "z"})
	require.Equal(t, ragerr.UnknownVariable, ragerr.KindOf(err))
}

func TestReload_InFlightUnaffected(t *testing.T) {
	e, err := NewEngine([]Template{sampleTemplate()})
	require.NoError(t, err)

	snapBefore, err := e.Lookup("rag-default", "")
	require.NoError(t, err)

	updated := sampleTemplate()
	updated.SystemText = "updated system text"
	require.NoError(t, e.Reload([]Template{updated}))

	require.Equal(t, "You are a helpful assistant.", snapBefore.SystemText)

	after, err := e.Lookup("rag-default", "")
	require.NoError(t, err)
	require.Equal(t, "updated system text", after.SystemText)
}
