// Package resolve computes the external plugin and connector modules a
// validated blueprint depends on.
package resolve

import (
	"fmt"
	"sort"

	"dashpack/internal/blueprint"
)

// Resolution is the deduplicated dependency set for one blueprint.
type Resolution struct {
	Plugins    []blueprint.PluginRef    `json:"plugins"`
	Connectors []blueprint.ConnectorRef `json:"connectors"`
}

// PluginNames returns the resolved plugin names in sorted order.
func (r Resolution) PluginNames() []string {
	names := make([]string, 0, len(r.Plugins))
	for _, p := range r.Plugins {
		names = append(names, p.Name)
	}
	return names
}

// HasPlugin reports whether the resolution contains the named plugin.
func (r Resolution) HasPlugin(name string) bool {
	for _, p := range r.Plugins {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Resolve scans the blueprint's charts, datasource, and per-environment
// overrides, merges the findings with the explicitly declared dependency
// lists, and returns the deduplicated set plus any non-fatal warnings.
//
// Explicit declarations win on version when both exist for a name; when the
// same name is declared twice with different versions the last declaration
// wins and a warning is surfaced rather than silently overriding.
func Resolve(bp blueprint.Blueprint) (Resolution, []string) {
	var warnings []string

	plugins := map[string]string{}
	pluginOrder := []string{}
	addPlugin := func(name, version string) {
		if name == "" {
			return
		}
		prev, seen := plugins[name]
		if !seen {
			pluginOrder = append(pluginOrder, name)
			plugins[name] = version
			return
		}
		if version != "" && prev != "" && version != prev {
			warnings = append(warnings, fmt.Sprintf(
				"plugin %q declared with conflicting versions %q and %q; last declared wins", name, prev, version))
		}
		if version != "" {
			plugins[name] = version
		}
	}

	connectors := map[string]string{}
	connectorOrder := []string{}
	addConnector := func(name, version string) {
		if name == "" {
			return
		}
		prev, seen := connectors[name]
		if !seen {
			connectorOrder = append(connectorOrder, name)
			connectors[name] = version
			return
		}
		if version != "" && prev != "" && version != prev {
			warnings = append(warnings, fmt.Sprintf(
				"connector %q declared with conflicting versions %q and %q; last declared wins", name, prev, version))
		}
		if version != "" {
			connectors[name] = version
		}
	}

	for _, chart := range bp.Charts {
		if !chart.IsPluginType() {
			continue
		}
		version := ""
		if chart.Plugin != nil && chart.Plugin.Name == chart.PluginName() {
			version = chart.Plugin.Version
		}
		addPlugin(chart.PluginName(), version)
	}

	addConnector(bp.Datasource.Type, "")
	if !blueprint.IsKnownConnectorKind(bp.Datasource.Type) && bp.Datasource.Type != "" {
		warnings = append(warnings, fmt.Sprintf("datasource type %q is not a built-in connector", bp.Datasource.Type))
	}
	if bp.Deployment != nil {
		envNames := make([]string, 0, len(bp.Deployment.Environments))
		for name := range bp.Deployment.Environments {
			envNames = append(envNames, name)
		}
		sort.Strings(envNames)
		for _, name := range envNames {
			env := bp.Deployment.Environments[name]
			if env.Datasource == nil || env.Datasource.Type == "" {
				continue
			}
			addConnector(env.Datasource.Type, "")
			if !blueprint.IsKnownConnectorKind(env.Datasource.Type) {
				warnings = append(warnings, fmt.Sprintf(
					"environment %q datasource type %q is not a built-in connector", name, env.Datasource.Type))
			}
		}
	}

	// Explicit declarations merge last so their version constraints win.
	for _, p := range bp.Plugins {
		addPlugin(p.Name, p.Version)
	}
	for _, c := range bp.Connectors {
		addConnector(c.Name, c.Version)
	}

	res := Resolution{
		Plugins:    make([]blueprint.PluginRef, 0, len(pluginOrder)),
		Connectors: make([]blueprint.ConnectorRef, 0, len(connectorOrder)),
	}
	sort.Strings(pluginOrder)
	for _, name := range pluginOrder {
		res.Plugins = append(res.Plugins, blueprint.PluginRef{Name: name, Version: plugins[name]})
	}
	sort.Strings(connectorOrder)
	for _, name := range connectorOrder {
		res.Connectors = append(res.Connectors, blueprint.ConnectorRef{Name: name, Version: connectors[name]})
	}
	return res, warnings
}
