package selectors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	set, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), set)
}

func TestLoadOverridesOnlyListedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extract:
  containers:
    - "section.post"
session:
  search:
    - "#q"
`), 0600))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"section.post"}, set.Extract.Containers)
	assert.Equal(t, []string{"#q"}, set.Session.Search)
	assert.Equal(t, Default().Extract.Content, set.Extract.Content)
	assert.Equal(t, Default().Session.Navigation, set.Session.Navigation)
}

func TestLoadRejectsEmptyContainers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extract:\n  containers: []\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extract: [unterminated"), 0600))
	_, err = Load(path)
	assert.Error(t, err)
}
