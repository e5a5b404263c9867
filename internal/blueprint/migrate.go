package blueprint

import (
	"errors"
	"fmt"
	"strings"
)

// Legacy documents carry their visual units under "visuals" and may use
// "name" for the title. Migration maps them into the current shape; it never
// generates identifiers, so identical input always yields identical output.

// Migrate upgrades a legacy document into the current schema shape. The
// result still needs to pass Validate before it is accepted as a Blueprint.
func Migrate(doc map[string]any) (map[string]any, error) {
	visuals, hasVisuals := doc["visuals"].([]any)
	charts, hasCharts := doc["charts"].([]any)
	if (!hasVisuals || len(visuals) == 0) && (!hasCharts || len(charts) == 0) {
		return nil, errors.New(`migrate: document has neither "visuals" nor "charts"`)
	}

	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case "id", "name", "visuals", "version", "dataSource":
			// handled below
		default:
			out[k] = v
		}
	}
	out["version"] = CurrentVersion

	if _, ok := out["title"]; !ok {
		if name, ok := doc["name"].(string); ok && name != "" {
			out["title"] = name
		}
	}

	if _, ok := out["datasource"]; !ok {
		if ds, ok := doc["dataSource"]; ok {
			out["datasource"] = ds
		}
	}

	if hasCharts && len(charts) > 0 {
		out["charts"] = charts
		return out, nil
	}

	migrated := make([]any, 0, len(visuals))
	for i, raw := range visuals {
		visual, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("migrate: visuals.%d is not an object", i)
		}
		migrated = append(migrated, migrateVisual(visual, i))
	}
	out["charts"] = migrated
	return out, nil
}

func migrateVisual(visual map[string]any, index int) map[string]any {
	chart := map[string]any{
		"id":   visualID(visual, index),
		"type": visualType(visual),
	}

	encoding := map[string]string{}
	if enc, ok := visual["encoding"].(map[string]any); ok {
		for role, field := range enc {
			if s, ok := field.(string); ok && s != "" {
				encoding[role] = s
			}
		}
	}
	if len(encoding) > 0 {
		chart["encoding"] = encoding
	}
	chart["query"] = synthesizeQuery(encoding, visualTable(visual))

	if pos, ok := visual["position"].(map[string]any); ok {
		chart["position"] = pos
	} else {
		// Deterministic three-across grid flow for visuals without placement.
		chart["position"] = map[string]any{
			"x": (index % 3) * 4,
			"y": (index / 3) * 4,
			"w": 4,
			"h": 4,
		}
	}

	if style, ok := visual["style"].(map[string]any); ok {
		chart["style"] = style
	}
	if plugin, ok := visual["plugin"].(map[string]any); ok {
		chart["plugin"] = plugin
	}
	return chart
}

func visualID(visual map[string]any, index int) string {
	if id, ok := visual["id"].(string); ok && id != "" {
		return id
	}
	if name, ok := visual["name"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("chart-%d", index+1)
}

func visualType(visual map[string]any) string {
	if t, ok := visual["type"].(string); ok && t != "" {
		return t
	}
	return "table"
}

func visualTable(visual map[string]any) string {
	for _, key := range []string{"dataSource", "source", "table"} {
		if t, ok := visual[key].(string); ok && t != "" {
			return t
		}
	}
	return "data"
}

// synthesizeQuery builds a retrieval expression from the visual's encoding.
// Fields appear in x, y, color, text order; a visual without any encoded
// fields selects everything.
func synthesizeQuery(encoding map[string]string, table string) string {
	fields := make([]string, 0, 4)
	for _, role := range []string{"x", "y", "color", "text"} {
		if f := encoding[role]; f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return fmt.Sprintf("SELECT * FROM %s", table)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(fields, ", "), table)
}
