package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_Validates(t *testing.T) {
	tmpl := Builtin()
	require.NoError(t, tmpl.Validate())

	assert.Equal(t, EUUKMDRID, tmpl.ID)
	assert.Len(t, tmpl.Sections, 13)

	// The executive summary depends on everything else.
	a, ok := tmpl.Section("A")
	require.True(t, ok)
	assert.Len(t, a.DependsOn, 12)
}

func TestValidate_Cycle(t *testing.T) {
	tmpl := &Template{
		ID: "cyclic",
		Sections: []SectionSpec{
			{ID: "X", Agent: "a", DependsOn: []string{"Z"}},
			{ID: "Y", Agent: "a", DependsOn: []string{"X"}},
			{ID: "Z", Agent: "a", DependsOn: []string{"Y"}},
		},
	}

	err := tmpl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidate_SelfDependency(t *testing.T) {
	tmpl := &Template{
		ID:       "self",
		Sections: []SectionSpec{{ID: "X", Agent: "a", DependsOn: []string{"X"}}},
	}
	assert.ErrorContains(t, tmpl.Validate(), "depends on itself")
}

func TestValidate_UnknownDependency(t *testing.T) {
	tmpl := &Template{
		ID:       "dangling",
		Sections: []SectionSpec{{ID: "X", Agent: "a", DependsOn: []string{"Q"}}},
	}
	assert.ErrorContains(t, tmpl.Validate(), "unknown section")
}

func TestValidate_DuplicateID(t *testing.T) {
	tmpl := &Template{
		ID: "dup",
		Sections: []SectionSpec{
			{ID: "X", Agent: "a"},
			{ID: "X", Agent: "b"},
		},
	}
	assert.ErrorContains(t, tmpl.Validate(), "duplicate")
}

func TestValidate_MissingAgent(t *testing.T) {
	tmpl := &Template{ID: "noagent", Sections: []SectionSpec{{ID: "X"}}}
	assert.ErrorContains(t, tmpl.Validate(), "no assigned agent")
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	doc := `id: custom
name: Custom Template
jurisdiction: US
regulatoryBasis: 21 CFR 803
sections:
  - id: S1
    number: 1
    name: Sales
    agent: Raj
    wordLimit: 500
  - id: S2
    number: 2
    name: Summary
    agent: Diana
    dependsOn: [S1]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	tmpl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom", tmpl.ID)
	require.Len(t, tmpl.Sections, 2)
	assert.Equal(t, []string{"S1"}, tmpl.Sections[1].DependsOn)
	assert.Equal(t, []string{"S1", "S2"}, tmpl.SectionIDs())
}

func TestLoad_InvalidTemplateRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	doc := `id: bad
sections:
  - id: S1
    agent: Raj
    dependsOn: [S2]
  - id: S2
    agent: Sam
    dependsOn: [S1]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "cycle")
}
