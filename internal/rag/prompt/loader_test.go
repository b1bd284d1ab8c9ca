package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemplateFile(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

func TestLoadDir_BuildsEngineFromYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeTemplateFile(t, dir, "rag-default.yaml", `
name: rag-default
version: "1.0.0"
system: "You are a helpful assistant."
user: |
  Context:
  {{context}}

  Question: {{question}}
variables:
  - name: context
    required: true
  - name: question
    required: true
sampling:
  temperature: 0.2
  max_tokens: 512
`)

	engine, err := LoadDir(dir)
	require.NoError(t, err)

	tmpl, err := engine.Lookup("rag-default", "")
	require.NoError(t, err)
	require.Equal(t, "1.0.0", tmpl.Version)
	require.Equal(t, 0.2, tmpl.Sampling.Temperature)

	rendered, err := Render(tmpl, map[string]string{"context": "ctx", "question": "q"})
	require.NoError(t, err)
	require.Contains(t, rendered.User, "ctx")
	require.Contains(t, rendered.User, "q")
}

func TestLoadDir_IgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeTemplateFile(t, dir, "rag-default.yaml", `
name: rag-default
version: "1.0.0"
system: "sys"
user: "{{question}}"
variables:
  - name: question
    required: true
`)
	writeTemplateFile(t, dir, "README.md", "not a template")

	engine, err := LoadDir(dir)
	require.NoError(t, err)
	_, err = engine.Lookup("rag-default", "")
	require.NoError(t, err)
}

func TestReloadDir_PublishesNewSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeTemplateFile(t, dir, "rag-default.yaml", `
name: rag-default
version: "1.0.0"
system: "v1"
user: "{{question}}"
variables:
  - name: question
    required: true
`)
	engine, err := LoadDir(dir)
	require.NoError(t, err)

	writeTemplateFile(t, dir, "rag-default-v2.yaml", `
name: rag-default
version: "2.0.0"
system: "v2"
user: "{{question}}"
variables:
  - name: question
    required: true
`)
	require.NoError(t, ReloadDir(engine, dir))

	tmpl, err := engine.Lookup("rag-default", "")
	require.NoError(t, err)
	require.Equal(t, "2.0.0", tmpl.Version)
}
