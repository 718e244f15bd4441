package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSetConfigValueKeepsCommentsAndOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("# where the service lives\nbase-url: http://localhost:8000\nmarkdown: false\n"), 0o644))

	root, err := ReadConfigFile(path)
	require.NoError(t, err)

	require.NoError(t, SetConfigValue(root, "markdown", "true"))
	require.NoError(t, SetConfigValue(root, "overlap-policy", "queue"))
	require.NoError(t, WriteConfigFile(path, root))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(b)
	assert.Contains(t, content, "# where the service lives")
	assert.Contains(t, content, "markdown: true")
	assert.NotContains(t, content, "markdown: false")
	assert.Less(t, strings.Index(content, "base-url:"), strings.Index(content, "overlap-policy: queue"))
}

func TestSetConfigValueOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palaver", "config.yaml")

	root, err := ReadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, SetConfigValue(root, "reply-timeout", "30s"))
	require.NoError(t, WriteConfigFile(path, root))

	reread, err := ReadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"reply-timeout", "30s"}}, ConfigValues(reread))
}

func TestSetConfigValueRejects(t *testing.T) {
	root := &yaml.Node{Kind: yaml.DocumentNode}
	require.Error(t, SetConfigValue(root, "openai-api-key", "x"))

	var list yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("- a\n- b\n"), &list))
	require.Error(t, SetConfigValue(&list, "base-url", "x"))
}

func TestFlattenUsesConfigKeys(t *testing.T) {
	s := &Settings{Client: NewClientSettings(), Chat: NewChatSettings()}
	flat := s.Flatten()
	for k := range flat {
		assert.True(t, IsConfigKey(k), k)
	}
	assert.Equal(t, "1m0s", flat["reply-timeout"])
}
