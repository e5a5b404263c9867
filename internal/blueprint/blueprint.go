package blueprint

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CurrentVersion is the schema version this pipeline emits. Documents below
// it (or without a version) are migrated before any downstream stage sees
// them.
const CurrentVersion = "2.0.0"

// PluginTypePrefix marks chart types supplied by external plugin modules.
const PluginTypePrefix = "plugin:"

// Blueprint is the versioned dashboard document. Values are immutable once
// validated for a build; migration and override application return new
// values.
type Blueprint struct {
	Version     string            `json:"version"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Author      string            `json:"author,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Layout      Layout            `json:"layout"`
	Datasource  Datasource        `json:"datasource"`
	Charts      []Chart           `json:"charts"`
	Filters     []Filter          `json:"filters,omitempty"`
	Settings    Settings          `json:"settings"`
	Variables   map[string]string `json:"variables,omitempty"`
	Plugins     []PluginRef       `json:"plugins,omitempty"`
	Connectors  []ConnectorRef    `json:"connectors,omitempty"`
	Deployment  *Deployment       `json:"deployment,omitempty"`
}

// Layout describes how charts are arranged on the dashboard surface.
type Layout struct {
	Type      string `json:"type"`
	Columns   int    `json:"columns,omitempty"`
	RowHeight int    `json:"rowHeight,omitempty"`
	Margin    int    `json:"margin,omitempty"`
	Padding   int    `json:"padding,omitempty"`
}

// Datasource identifies the connector feeding the dashboard. Documents may
// declare it as a bare connector name or as a structured object; both decode
// into the structured form.
type Datasource struct {
	Type       string         `json:"type"`
	Connection map[string]any `json:"connection,omitempty"`
	Schema     string         `json:"schema,omitempty"`
	Cache      *CacheConfig   `json:"cache,omitempty"`
}

// CacheConfig controls datasource-level result caching.
type CacheConfig struct {
	Enabled    bool `json:"enabled"`
	TTLSeconds int  `json:"ttlSeconds,omitempty"`
}

// UnmarshalJSON accepts either a bare connector name or the structured shape.
func (d *Datasource) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*d = Datasource{Type: name}
		return nil
	}

	type plain Datasource
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("datasource must be a connector name or object: %w", err)
	}
	*d = Datasource(p)
	return nil
}

// Chart is one visual unit within a Blueprint.
type Chart struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Query    string            `json:"query,omitempty"`
	Position Position          `json:"position"`
	Encoding map[string]string `json:"encoding,omitempty"`
	Style    map[string]any    `json:"style,omitempty"`
	Plugin   *PluginRef        `json:"plugin,omitempty"`
}

// IsPluginType reports whether the chart's visual kind is supplied by an
// external plugin module.
func (c Chart) IsPluginType() bool {
	return strings.HasPrefix(c.Type, PluginTypePrefix)
}

// PluginName returns the plugin module name for a plugin-typed chart, or "".
func (c Chart) PluginName() string {
	if !c.IsPluginType() {
		return ""
	}
	return strings.TrimPrefix(c.Type, PluginTypePrefix)
}

// Position is a grid placement: origin plus span.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Filter is a global control bound to a field.
type Filter struct {
	ID        string    `json:"id,omitempty"`
	Field     string    `json:"field"`
	Component string    `json:"component,omitempty"`
	Default   any       `json:"default,omitempty"`
	Position  *Position `json:"position,omitempty"`
}

// Settings hold display and behavior configuration.
type Settings struct {
	Theme           string `json:"theme,omitempty"`
	RefreshInterval int    `json:"refreshInterval,omitempty"`
	AllowExport     bool   `json:"allowExport,omitempty"`
	AllowEdit       bool   `json:"allowEdit,omitempty"`
}

// PluginRef names an external visual-kind module, optionally pinned.
type PluginRef struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ConnectorRef names a data-source integration module, optionally pinned.
type ConnectorRef struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Deployment carries target platforms, per-environment overrides, and
// publish metadata.
type Deployment struct {
	Targets      []string               `json:"targets,omitempty"`
	Environments map[string]Environment `json:"environments,omitempty"`
	Publish      *PublishMeta           `json:"publish,omitempty"`
}

// Environment overrides the datasource and variables for one named
// deployment environment.
type Environment struct {
	Datasource *Datasource       `json:"datasource,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// PublishMeta is the marketplace-facing publish configuration.
type PublishMeta struct {
	Channel    string   `json:"channel,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	License    string   `json:"license,omitempty"`
	Pricing    *Pricing `json:"pricing,omitempty"`
}

// Pricing describes the listing price model.
type Pricing struct {
	Model    string  `json:"model"`
	Price    float64 `json:"price,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

// WithEnvironment returns a copy of the Blueprint with the named
// environment's datasource and variable overrides applied. Environment
// variables merge over blueprint-level ones key by key. An empty name or an
// unknown environment returns the Blueprint unchanged along with false.
func (b Blueprint) WithEnvironment(name string) (Blueprint, bool) {
	if name == "" || b.Deployment == nil {
		return b, false
	}
	env, ok := b.Deployment.Environments[name]
	if !ok {
		return b, false
	}
	if env.Datasource != nil {
		b.Datasource = *env.Datasource
	}
	if len(env.Variables) > 0 {
		merged := make(map[string]string, len(b.Variables)+len(env.Variables))
		for k, v := range b.Variables {
			merged[k] = v
		}
		for k, v := range env.Variables {
			merged[k] = v
		}
		b.Variables = merged
	}
	return b, true
}

// Document converts the Blueprint back into the generic map shape accepted
// by Validate. Used when revalidating an already-validated value.
func (b Blueprint) Document() (map[string]any, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal blueprint: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal blueprint: %w", err)
	}
	return doc, nil
}
