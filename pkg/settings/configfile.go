package settings

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigKeys are the keys palaver reads from its config file and environment.
var ConfigKeys = []string{
	"base-url",
	"user-agent",
	"reply-timeout",
	"welcome-timeout",
	"allow-http",
	"allow-local-networks",
	"overlap-policy",
	"markdown",
	"no-welcome",
	"log-level",
	"log-format",
	"log-file",
	"with-caller",
	"verbose",
}

func IsConfigKey(key string) bool {
	for _, k := range ConfigKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Flatten returns the settings keyed by their config file keys.
func (s *Settings) Flatten() map[string]interface{} {
	return map[string]interface{}{
		"base-url":             s.Client.BaseURL,
		"user-agent":           s.Client.UserAgent,
		"reply-timeout":        s.Client.ReplyTimeout.String(),
		"welcome-timeout":      s.Client.WelcomeTimeout.String(),
		"allow-http":           s.Client.AllowHTTP,
		"allow-local-networks": s.Client.AllowLocalNetworks,
		"overlap-policy":       s.Chat.OverlapPolicy,
		"markdown":             s.Chat.Markdown,
		"no-welcome":           s.Chat.NoWelcome,
	}
}

// ReadConfigFile parses a config file into a YAML node tree. A missing file yields an empty document.
func ReadConfigFile(path string) (*yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.DocumentNode}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return root, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file %s", path)
	}

	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, errors.Wrapf(err, "error parsing config file %s", path)
	}
	if root.Kind == 0 {
		root.Kind = yaml.DocumentNode
	}
	return root, nil
}

func WriteConfigFile(path string, root *yaml.Node) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error opening config file for writing")
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return errors.Wrap(err, "error writing config file")
	}
	return encoder.Close()
}

// SetConfigValue sets a top-level key of a config document, keeping comments and key order.
func SetConfigValue(root *yaml.Node, key string, value string) error {
	if !IsConfigKey(key) {
		return errors.Errorf("unknown config key %q", key)
	}
	if root.Kind != yaml.DocumentNode {
		return errors.New("config is not a YAML document")
	}
	if len(root.Content) == 0 {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return errors.New("config file is not a mapping")
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value != key {
			continue
		}
		v := mapping.Content[i+1]
		v.Kind = yaml.ScalarNode
		v.Tag = ""
		v.Style = 0
		v.Content = nil
		v.Value = value
		return nil
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value},
	)
	return nil
}

// ConfigValues lists the top-level scalar keys of a config document, sorted by key.
func ConfigValues(root *yaml.Node) [][2]string {
	var ret [][2]string
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return ret
	}
	mapping := root.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i+1].Kind == yaml.ScalarNode {
			ret = append(ret, [2]string{mapping.Content[i].Value, mapping.Content[i+1].Value})
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i][0] < ret[j][0]
	})
	return ret
}
