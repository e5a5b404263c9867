package blueprint

import (
	"fmt"
	"reflect"
	"testing"
)

func legacyDocument(visuals int) map[string]any {
	list := make([]any, 0, visuals)
	for i := 0; i < visuals; i++ {
		list = append(list, map[string]any{
			"id":   fmt.Sprintf("v%d", i+1),
			"type": "bar",
			"encoding": map[string]any{
				"x": "region",
				"y": "revenue",
			},
			"dataSource": "sales",
		})
	}
	return map[string]any{
		"name":       "Legacy Sales",
		"dataSource": "supabase",
		"visuals":    list,
	}
}

func TestMigrateRoundTrip(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("%d visuals", n), func(t *testing.T) {
			migrated, err := Migrate(legacyDocument(n))
			if err != nil {
				t.Fatalf("Migrate: %v", err)
			}
			bp, errs := Validate(migrated)
			if len(errs) > 0 {
				t.Fatalf("migrated document failed validation: %v", errs)
			}
			if len(bp.Charts) != n {
				t.Fatalf("charts = %d, want %d", len(bp.Charts), n)
			}
			if bp.Version != CurrentVersion {
				t.Fatalf("version = %q, want %q", bp.Version, CurrentVersion)
			}
			if bp.Title != "Legacy Sales" {
				t.Fatalf("title = %q", bp.Title)
			}
		})
	}
}

func TestMigrateQuerySynthesis(t *testing.T) {
	tests := []struct {
		name   string
		visual map[string]any
		want   string
	}{
		{
			name: "encoding fields in x y color text order",
			visual: map[string]any{
				"type": "bar",
				"encoding": map[string]any{
					"text":  "label",
					"color": "segment",
					"y":     "revenue",
					"x":     "region",
				},
				"dataSource": "sales",
			},
			want: "SELECT region, revenue, segment, label FROM sales",
		},
		{
			name:   "no encoding falls back to wildcard",
			visual: map[string]any{"type": "table"},
			want:   "SELECT * FROM data",
		},
		{
			name: "table default when datasource missing",
			visual: map[string]any{
				"type":     "line",
				"encoding": map[string]any{"x": "week"},
			},
			want: "SELECT week FROM data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := map[string]any{
				"name":       "Q",
				"dataSource": "supabase",
				"visuals":    []any{tt.visual},
			}
			migrated, err := Migrate(doc)
			if err != nil {
				t.Fatalf("Migrate: %v", err)
			}
			charts := migrated["charts"].([]any)
			chart := charts[0].(map[string]any)
			if got := chart["query"]; got != tt.want {
				t.Fatalf("query = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrateDeterministic(t *testing.T) {
	first, err := Migrate(legacyDocument(4))
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	second, err := Migrate(legacyDocument(4))
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical legacy input produced different migrated output")
	}
}

func TestMigrateWithoutVisualsOrCharts(t *testing.T) {
	_, err := Migrate(map[string]any{"name": "Empty"})
	if err == nil {
		t.Fatal("expected migration error")
	}
}

func TestMigrateKeepsExistingCharts(t *testing.T) {
	doc := map[string]any{
		"version": "1.5.0",
		"name":    "Half Migrated",
		"charts": []any{
			map[string]any{"id": "c1", "type": "bar"},
		},
	}
	migrated, err := Migrate(doc)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	charts := migrated["charts"].([]any)
	if len(charts) != 1 {
		t.Fatalf("charts = %d, want 1", len(charts))
	}
	if migrated["version"] != CurrentVersion {
		t.Fatalf("version = %v", migrated["version"])
	}
}

func TestIsLegacy(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want bool
	}{
		{"missing version", map[string]any{}, true},
		{"old version", map[string]any{"version": "1.0.0"}, true},
		{"current version", map[string]any{"version": CurrentVersion}, false},
		{"newer version", map[string]any{"version": "3.0.0"}, false},
		{"unparseable version", map[string]any{"version": "latest"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLegacy(tt.doc); got != tt.want {
				t.Fatalf("IsLegacy = %v, want %v", got, tt.want)
			}
		})
	}
}
