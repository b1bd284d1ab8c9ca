// Package prompt implements the Prompt Template Engine (C15): directory-
// loaded, versioned templates with strict variable substitution. Grounded on
// the Prompt/PromptVersion/VariableSchema shape of
// internal/playground/registry, adapted from a CRUD registry into a
// cached-snapshot render engine with hot reload.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"ragforge/internal/rag/ragerr"
)

// VariableSchema describes one template variable.
type VariableSchema struct {
	Name        string
	Required    bool
	Description string
}

// SamplingParams carries default generation parameters a template requests.
type SamplingParams struct {
	Temperature float64
	MaxTokens   int
}

// Template is a single loaded (name, version) prompt definition.
type Template struct {
	Name         string
	Version      string
	Deprecated   bool
	NoCitation   bool
	SystemText   string
	UserText     string
	Variables    []VariableSchema
	Sampling     SamplingParams
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Rendered is the output of Render.
type Rendered struct {
	System string
	User   string
}

// Engine holds an atomically-swappable snapshot of loaded templates.
type Engine struct {
	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	byNameVersion map[string]Template   // key: name + "@" + version
	latest        map[string]Template   // key: name -> latest non-deprecated version
}

// NewEngine builds an engine from a set of templates, validating them per
// the load-time invariants: no duplicate (name, version), and no undeclared
// variable referenced in system/user text.
func NewEngine(templates []Template) (*Engine, error) {
	snap, err := buildSnapshot(templates)
	if err != nil {
		return nil, err
	}
	e := &Engine{}
	e.snapshot.Store(snap)
	return e, nil
}

// Reload atomically replaces the engine's template set. In-flight renders
// keep using the snapshot they already captured.
func (e *Engine) Reload(templates []Template) error {
	snap, err := buildSnapshot(templates)
	if err != nil {
		return err
	}
	e.snapshot.Store(snap)
	return nil
}

func buildSnapshot(templates []Template) (*snapshot, error) {
	snap := &snapshot{
		byNameVersion: make(map[string]Template, len(templates)),
		latest:        make(map[string]Template),
	}
	for _, t := range templates {
		key := t.Name + "@" + t.Version
		if _, dup := snap.byNameVersion[key]; dup {
			return nil, ragerr.New(ragerr.InvalidInput,
				fmt.Sprintf("prompt: duplicate template (%s, %s)", t.Name, t.Version))
		}
		if err := validateDeclaredVariables(t); err != nil {
			return nil, err
		}
		snap.byNameVersion[key] = t
	}

	// Pick the latest non-deprecated version per name. "Latest" is
	// determined by lexicographic ordering over semver-like version
	// strings sorted ascending, then taking the last eligible one.
	byName := make(map[string][]Template)
	for _, t := range templates {
		byName[t.Name] = append(byName[t.Name], t)
	}
	for name, versions := range byName {
		sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
		for i := len(versions) - 1; i >= 0; i-- {
			if !versions[i].Deprecated {
				snap.latest[name] = versions[i]
				break
			}
		}
	}
	return snap, nil
}

// validateDeclaredVariables rejects templates whose text references a
// placeholder not present in the declared variable list.
func validateDeclaredVariables(t Template) error {
	declared := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		declared[v.Name] = true
	}
	for _, text := range []string{t.SystemText, t.UserText} {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			if !declared[m[1]] {
				return ragerr.New(ragerr.InvalidInput,
					fmt.Sprintf("prompt: template %q@%q references undeclared variable %q", t.Name, t.Version, m[1]))
			}
		}
	}
	return nil
}

// Lookup resolves a template by name, using the latest non-deprecated
// version when version is empty.
func (e *Engine) Lookup(name, version string) (Template, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		return Template{}, ragerr.New(ragerr.NotFound, "prompt: engine has no loaded templates")
	}
	if version == "" {
		t, ok := snap.latest[name]
		if !ok {
			return Template{}, ragerr.New(ragerr.NotFound, fmt.Sprintf("prompt: no template named %q", name))
		}
		return t, nil
	}
	t, ok := snap.byNameVersion[name+"@"+version]
	if !ok {
		return Template{}, ragerr.New(ragerr.NotFound, fmt.Sprintf("prompt: no template %q@%q", name, version))
	}
	return t, nil
}

// Render performs strict {{name}} substitution against vars. Every required
// variable must be supplied (TemplateVariableMissing) and every supplied key
// must be declared by the template (UnknownVariable).
func Render(t Template, vars map[string]string) (Rendered, error) {
	declared := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		declared[v.Name] = true
	}
	for k := range vars {
		if !declared[k] {
			return Rendered{}, ragerr.New(ragerr.UnknownVariable,
				fmt.Sprintf("prompt: variable %q is not declared by template %q", k, t.Name))
		}
	}
	for _, v := range t.Variables {
		if !v.Required {
			continue
		}
		if _, ok := vars[v.Name]; !ok {
			return Rendered{}, ragerr.New(ragerr.TemplateVariableMissing,
				fmt.Sprintf("prompt: variable %q is required by template %q", v.Name, t.Name))
		}
	}

	return Rendered{
		System: substitute(t.SystemText, vars),
		User:   substitute(t.UserText, vars),
	}, nil
}

func substitute(text string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// HasUnresolvedPlaceholders reports whether rendered text still contains a
// `{{...}}` token, a defensive check the orchestrator can run before
// sending a rendered prompt to the LLM.
func HasUnresolvedPlaceholders(s string) bool {
	return strings.Contains(s, "{{") && placeholderPattern.MatchString(s)
}
