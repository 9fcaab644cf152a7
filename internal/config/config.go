package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"voxelmap.ai/internal/color"
)

const (
	DefaultSufficientAlpha = 230
	DefaultMinAlpha        = 128
)

type Config struct {
	Version         int                    `yaml:"version" toml:"version"`
	BackgroundColor color.Color            `yaml:"background_color" toml:"background_color"`
	NodeColors      map[string]color.Color `yaml:"node_colors" toml:"node_colors"`

	// SufficientAlpha is the opacity at which a column cell counts as
	// resolved: deeper voxels are not scanned any more.
	SufficientAlpha uint8       `yaml:"sufficient_alpha" toml:"sufficient_alpha"`
	HillShading     HillShading `yaml:"hill_shading" toml:"hill_shading"`
}

type HillShading struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// MinAlpha is the opacity above which a voxel's elevation is recorded
	// for relief shading.
	MinAlpha uint8 `yaml:"min_alpha" toml:"min_alpha"`
}

func Defaults() Config {
	return Config{
		Version:         1,
		BackgroundColor: color.RGBA(255, 255, 255, 255),
		NodeColors:      map[string]color.Color{},
		SufficientAlpha: DefaultSufficientAlpha,
		HillShading: HillShading{
			Enabled:  true,
			MinAlpha: DefaultMinAlpha,
		},
	}
}

// NodeColor returns the display color configured for a node name.
func (c *Config) NodeColor(name string) (color.Color, bool) {
	col, ok := c.NodeColors[name]
	return col, ok
}

// Load reads a render config. The format follows the extension:
// .toml is TOML, everything else is YAML. Colors are hex strings; in YAML
// an unquoted hex made only of digits (000000, 123456) is read as written.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = FormatTOML
	}
	cfg, err := Parse(raw, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// legacyKeys are keys of older color files that map onto current fields.
// transparent_nodes is accepted by the schema but has no effect.
type legacyKeys struct {
	TargetAlpha *uint8 `yaml:"target_alpha" toml:"target_alpha"`
}

// Parse validates raw against the config schema and decodes it on top of
// Defaults.
func Parse(raw []byte, format Format) (Config, error) {
	var decode func(v any) error
	switch format {
	case FormatTOML:
		decode = func(v any) error {
			return toml.NewDecoder(bytes.NewReader(raw)).Decode(v)
		}
	default:
		var root yaml.Node
		if err := yaml.Unmarshal(raw, &root); err != nil {
			return Config{}, err
		}
		hexScalarsAsStrings(&root)
		decode = func(v any) error {
			if root.Kind == 0 {
				return nil
			}
			return root.Decode(v)
		}
	}

	var doc map[string]any
	if err := decode(&doc); err != nil {
		return Config{}, err
	}
	if err := validate(doc); err != nil {
		return Config{}, err
	}

	cfg := Defaults()
	if err := decode(&cfg); err != nil {
		return Config{}, err
	}
	var legacy legacyKeys
	if err := decode(&legacy); err != nil {
		return Config{}, err
	}
	if _, set := doc["sufficient_alpha"]; !set && legacy.TargetAlpha != nil {
		cfg.SufficientAlpha = *legacy.TargetAlpha
	}
	if cfg.NodeColors == nil {
		cfg.NodeColors = map[string]color.Color{}
	}
	return cfg, nil
}

// hexScalarsAsStrings retags numeric scalars in color positions as strings
// so that background_color: 000000 keeps its digits.
func hexScalarsAsStrings(root *yaml.Node) {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i], top.Content[i+1]
		switch key.Value {
		case "background_color":
			asString(val)
		case "node_colors":
			if val.Kind != yaml.MappingNode {
				continue
			}
			for j := 1; j < len(val.Content); j += 2 {
				asString(val.Content[j])
			}
		}
	}
}

func asString(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && (n.Tag == "!!int" || n.Tag == "!!float") {
		n.Tag = "!!str"
	}
}

// normalize turns a yaml/toml document into the shape encoding/json
// produces, which is what the schema validator expects.
func normalize(doc map[string]any) (any, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
