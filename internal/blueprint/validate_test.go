package blueprint

import (
	"reflect"
	"testing"
)

func validDocument() map[string]any {
	return map[string]any{
		"version":    CurrentVersion,
		"title":      "Regional Sales",
		"datasource": "supabase",
		"charts": []any{
			map[string]any{
				"id":   "revenue",
				"type": "bar",
				"position": map[string]any{
					"x": 0, "y": 0, "w": 6, "h": 4,
				},
			},
		},
	}
}

func TestValidateDefaults(t *testing.T) {
	bp, errs := Validate(validDocument())
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if bp.Layout.Type != DefaultLayoutType {
		t.Errorf("layout type = %q, want %q", bp.Layout.Type, DefaultLayoutType)
	}
	if bp.Layout.Columns != DefaultColumns {
		t.Errorf("columns = %d, want %d", bp.Layout.Columns, DefaultColumns)
	}
	if bp.Settings.Theme != DefaultTheme {
		t.Errorf("theme = %q, want %q", bp.Settings.Theme, DefaultTheme)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(doc map[string]any)
		wantPath string
		wantMsg  string
	}{
		{
			name: "missing title",
			mutate: func(doc map[string]any) {
				delete(doc, "title")
			},
			wantPath: "title",
			wantMsg:  "required",
		},
		{
			name: "zero charts",
			mutate: func(doc map[string]any) {
				doc["charts"] = []any{}
			},
			wantPath: "charts",
			wantMsg:  "Dashboard must contain at least one chart",
		},
		{
			name: "unknown chart type",
			mutate: func(doc map[string]any) {
				doc["charts"] = []any{
					map[string]any{"id": "c1", "type": "hologram"},
				}
			},
			wantPath: "charts.0.type",
			wantMsg:  "invalid enum value",
		},
		{
			name: "missing datasource",
			mutate: func(doc map[string]any) {
				delete(doc, "datasource")
			},
			wantPath: "datasource",
			wantMsg:  "missing connector type",
		},
		{
			name: "invalid layout",
			mutate: func(doc map[string]any) {
				doc["layout"] = map[string]any{"type": "masonry"}
			},
			wantPath: "layout.type",
			wantMsg:  "invalid enum value",
		},
		{
			name: "invalid publish channel",
			mutate: func(doc map[string]any) {
				doc["deployment"] = map[string]any{
					"publish": map[string]any{"channel": "production"},
				}
			},
			wantPath: "deployment.publish.channel",
			wantMsg:  "invalid enum value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)
			_, errs := Validate(doc)
			for _, e := range errs {
				if e.Path == tt.wantPath && e.Message == tt.wantMsg {
					return
				}
			}
			t.Fatalf("errors %v missing %s: %s", errs, tt.wantPath, tt.wantMsg)
		})
	}
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	doc := validDocument()
	delete(doc, "title")
	delete(doc, "datasource")
	doc["charts"] = []any{
		map[string]any{"id": "c1", "type": "hologram"},
		map[string]any{"id": "c1", "type": "bar"},
	}

	_, errs := Validate(doc)
	if len(errs) < 4 {
		t.Fatalf("expected at least 4 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidateDuplicateChartIDs(t *testing.T) {
	doc := validDocument()
	doc["charts"] = []any{
		map[string]any{"id": "c1", "type": "bar"},
		map[string]any{"id": "c1", "type": "line"},
	}

	_, errs := Validate(doc)
	found := false
	for _, e := range errs {
		if e.Path == "charts.1.id" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected duplicate id error at charts.1.id, got %v", errs)
	}
}

func TestValidateToleratesLegacyFields(t *testing.T) {
	doc := validDocument()
	doc["id"] = "dash-1"
	doc["name"] = "Old Name"
	doc["visuals"] = []any{map[string]any{"type": "bar"}}

	_, errs := Validate(doc)
	if len(errs) > 0 {
		t.Fatalf("legacy fields should not be errors: %v", errs)
	}
}

func TestValidatePluginTypedCharts(t *testing.T) {
	doc := validDocument()
	doc["charts"] = []any{
		map[string]any{"id": "flow", "type": "plugin:sankey"},
	}

	bp, errs := Validate(doc)
	if len(errs) > 0 {
		t.Fatalf("plugin-typed chart should validate: %v", errs)
	}
	if !bp.Charts[0].IsPluginType() || bp.Charts[0].PluginName() != "sankey" {
		t.Fatalf("plugin name = %q", bp.Charts[0].PluginName())
	}
}

func TestValidateIdempotent(t *testing.T) {
	first, errs := Validate(validDocument())
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	doc, err := first.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	second, errs := Validate(doc)
	if len(errs) > 0 {
		t.Fatalf("revalidation produced errors: %v", errs)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("revalidation changed the blueprint:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDatasourceUnion(t *testing.T) {
	doc := validDocument()
	doc["datasource"] = map[string]any{
		"type":   "postgres",
		"schema": "retail",
		"cache":  map[string]any{"enabled": true, "ttlSeconds": 300},
	}

	bp, errs := Validate(doc)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if bp.Datasource.Type != "postgres" || bp.Datasource.Schema != "retail" {
		t.Fatalf("datasource = %+v", bp.Datasource)
	}
	if bp.Datasource.Cache == nil || !bp.Datasource.Cache.Enabled {
		t.Fatalf("cache = %+v", bp.Datasource.Cache)
	}
}
