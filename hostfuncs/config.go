package hostfuncs

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/reglet-dev/plugabi/domain/entities"
	"gopkg.in/yaml.v3"
)

// ConfigStore holds block/entry configuration values served to plugins
// through config_get and config_set. Values keep the type they were loaded
// with; a write must parse as that type.
type ConfigStore struct {
	blocks map[string]map[string]entities.Value
	path   string
	mu     sync.RWMutex
}

// NewConfigStore creates an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{blocks: make(map[string]map[string]entities.Value)}
}

// LoadConfigFile reads a YAML config file. Save writes back to the same path.
func LoadConfigFile(path string) (*ConfigStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	store, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	store.path = path
	return store, nil
}

// ParseConfig decodes YAML of the form
//
//	block:
//	  entry: value
//
// Scalar tags decide the stored kind: !!int -> int64, !!float -> float64,
// !!bool -> bool, everything else -> string.
func ParseConfig(data []byte) (*ConfigStore, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	store := NewConfigStore()
	if len(root.Content) == 0 {
		return store, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config must be a mapping of blocks (line %d)", doc.Line)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		blockName, block := doc.Content[i].Value, doc.Content[i+1]
		if block.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("block %q must be a mapping (line %d)", blockName, block.Line)
		}
		entries := make(map[string]entities.Value, len(block.Content)/2)
		for j := 0; j+1 < len(block.Content); j += 2 {
			key, val := block.Content[j], block.Content[j+1]
			if val.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%s.%s must be a scalar (line %d)", blockName, key.Value, val.Line)
			}
			v, err := scalarValue(val)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", blockName, key.Value, err)
			}
			entries[key.Value] = v
		}
		store.blocks[blockName] = entries
	}
	return store, nil
}

func scalarValue(n *yaml.Node) (entities.Value, error) {
	switch n.ShortTag() {
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return entities.Void(), err
		}
		return entities.Int64(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return entities.Void(), err
		}
		return entities.Float64(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return entities.Void(), err
		}
		return entities.Bool(b), nil
	default:
		return entities.String(n.Value), nil
	}
}

// Get returns the value of block.entry.
func (c *ConfigStore) Get(block, entry string) (entities.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.blocks[block][entry]
	return v, ok
}

// Set stores v under block.entry, creating the block if needed.
func (c *ConfigStore) Set(block, entry string, v entities.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[block]
	if !ok {
		b = make(map[string]entities.Value)
		c.blocks[block] = b
	}
	b[entry] = v
}

// SetText parses text as the existing entry's kind, or stores it as a
// string when the entry is new.
func (c *ConfigStore) SetText(block, entry, text string) error {
	kind := entities.KindString
	if cur, ok := c.Get(block, entry); ok {
		kind = cur.Kind()
	}
	v, err := entities.ParseValue(kind, text)
	if err != nil {
		return err
	}
	c.Set(block, entry, v)
	return nil
}

// Blocks returns block names in sorted order.
func (c *ConfigStore) Blocks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.blocks))
	for name := range c.blocks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Marshal encodes the store back to YAML.
func (c *ConfigStore) Marshal() ([]byte, error) {
	c.mu.RLock()
	out := make(map[string]map[string]any, len(c.blocks))
	for name, entries := range c.blocks {
		m := make(map[string]any, len(entries))
		for k, v := range entries {
			m[k] = v.Interface()
		}
		out[name] = m
	}
	c.mu.RUnlock()
	return yaml.Marshal(out)
}

// Save writes the store to the file it was loaded from.
func (c *ConfigStore) Save() error {
	if c.path == "" {
		return fmt.Errorf("config store has no backing file")
	}
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(c.path, data, 0o600)
}
