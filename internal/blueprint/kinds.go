package blueprint

// Closed registries of built-in kinds. Anything outside them must come in
// through the plugin: escape hatch (charts) or be declared as a connector
// dependency (datasources).

var chartKinds = map[string]struct{}{
	"bar":     {},
	"line":    {},
	"area":    {},
	"pie":     {},
	"scatter": {},
	"table":   {},
	"kpi":     {},
	"heatmap": {},
	"funnel":  {},
	"gauge":   {},
}

var connectorKinds = map[string]struct{}{
	"supabase": {},
	"postgres": {},
	"mysql":    {},
	"bigquery": {},
	"rest":     {},
	"csv":      {},
}

var layoutKinds = map[string]struct{}{
	"grid":       {},
	"freeform":   {},
	"responsive": {},
}

// IsKnownChartKind reports whether t is a built-in visual kind.
func IsKnownChartKind(t string) bool {
	_, ok := chartKinds[t]
	return ok
}

// IsKnownConnectorKind reports whether t is a built-in connector kind.
func IsKnownConnectorKind(t string) bool {
	_, ok := connectorKinds[t]
	return ok
}

// IsKnownLayoutKind reports whether t is a supported layout mode.
func IsKnownLayoutKind(t string) bool {
	_, ok := layoutKinds[t]
	return ok
}
