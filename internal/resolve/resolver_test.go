package resolve

import (
	"reflect"
	"strings"
	"testing"

	"dashpack/internal/blueprint"
)

func baseBlueprint() blueprint.Blueprint {
	return blueprint.Blueprint{
		Version:    blueprint.CurrentVersion,
		Title:      "Store Performance",
		Datasource: blueprint.Datasource{Type: "supabase"},
		Charts: []blueprint.Chart{
			{ID: "kpi", Type: "kpi"},
		},
	}
}

func TestResolvePluginsFromChartTypes(t *testing.T) {
	bp := baseBlueprint()
	bp.Charts = append(bp.Charts,
		blueprint.Chart{ID: "flow", Type: "plugin:sankey"},
		blueprint.Chart{ID: "flow2", Type: "plugin:sankey"},
		blueprint.Chart{ID: "geo", Type: "plugin:choropleth"},
	)

	res, warnings := Resolve(bp)
	want := []string{"choropleth", "sankey"}
	if got := res.PluginNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("plugins = %v, want %v", got, want)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestResolveConnectors(t *testing.T) {
	bp := baseBlueprint()
	bp.Deployment = &blueprint.Deployment{
		Environments: map[string]blueprint.Environment{
			"staging": {Datasource: &blueprint.Datasource{Type: "postgres"}},
			"prod":    {Datasource: &blueprint.Datasource{Type: "supabase"}},
		},
	}

	res, _ := Resolve(bp)
	names := make([]string, 0, len(res.Connectors))
	for _, c := range res.Connectors {
		names = append(names, c.Name)
	}
	want := []string{"postgres", "supabase"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("connectors = %v, want %v", names, want)
	}
}

func TestResolveExplicitVersionWins(t *testing.T) {
	bp := baseBlueprint()
	bp.Charts = append(bp.Charts, blueprint.Chart{ID: "flow", Type: "plugin:sankey"})
	bp.Plugins = []blueprint.PluginRef{{Name: "sankey", Version: "2.1.0"}}

	res, _ := Resolve(bp)
	if len(res.Plugins) != 1 || res.Plugins[0].Version != "2.1.0" {
		t.Fatalf("plugins = %+v", res.Plugins)
	}
}

func TestResolveVersionConflictWarns(t *testing.T) {
	bp := baseBlueprint()
	bp.Charts = append(bp.Charts, blueprint.Chart{
		ID:     "flow",
		Type:   "plugin:sankey",
		Plugin: &blueprint.PluginRef{Name: "sankey", Version: "1.0.0"},
	})
	bp.Plugins = []blueprint.PluginRef{{Name: "sankey", Version: "2.0.0"}}

	res, warnings := Resolve(bp)
	if len(res.Plugins) != 1 || res.Plugins[0].Version != "2.0.0" {
		t.Fatalf("last declared should win: %+v", res.Plugins)
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "conflicting versions") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected conflict warning, got %v", warnings)
	}
}

func TestResolveUnknownConnectorWarns(t *testing.T) {
	bp := baseBlueprint()
	bp.Datasource = blueprint.Datasource{Type: "snowflake"}

	_, warnings := Resolve(bp)
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "snowflake") && strings.Contains(w, "not a built-in connector") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unknown connector warning, got %v", warnings)
	}
}
