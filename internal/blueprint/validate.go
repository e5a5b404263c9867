package blueprint

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Defaults applied to optional fields during validation.
const (
	DefaultLayoutType      = "grid"
	DefaultColumns         = 12
	DefaultRowHeight       = 40
	DefaultTheme           = "light"
	DefaultFilterComponent = "select"
)

var publishChannels = map[string]struct{}{
	"stable": {},
	"beta":   {},
	"alpha":  {},
	"dev":    {},
}

// IsValidChannel reports whether name is one of the enumerated release
// channels.
func IsValidChannel(name string) bool {
	_, ok := publishChannels[name]
	return ok
}

// Validate checks a decoded document against the current schema. It collects
// every violation instead of stopping at the first, applies documented
// defaults, and tolerates legacy fields (id, name, visuals) so migration can
// run first. Pure: the input map is never modified.
//
// Validation is idempotent: feeding a returned Blueprint's Document() back
// in yields the same Blueprint and no errors.
func Validate(doc map[string]any) (Blueprint, ErrorList) {
	var errs ErrorList

	bp, err := decodeStrictShape(doc)
	if err != nil {
		return Blueprint{}, ErrorList{{Path: "", Message: err.Error()}}
	}

	bp = applyDefaults(bp)

	if strings.TrimSpace(bp.Version) == "" {
		bp.Version = CurrentVersion
	} else if !semver.IsValid(canonicalVersion(bp.Version)) {
		errs = append(errs, FieldError{Path: "version", Message: "invalid semantic version"})
	}

	if strings.TrimSpace(bp.Title) == "" {
		errs = append(errs, FieldError{Path: "title", Message: "required"})
	}

	if !IsKnownLayoutKind(bp.Layout.Type) {
		errs = append(errs, FieldError{Path: "layout.type", Message: "invalid enum value"})
	}

	if strings.TrimSpace(bp.Datasource.Type) == "" {
		errs = append(errs, FieldError{Path: "datasource", Message: "missing connector type"})
	}

	if len(bp.Charts) == 0 {
		errs = append(errs, FieldError{Path: "charts", Message: "Dashboard must contain at least one chart"})
	}

	seen := make(map[string]int, len(bp.Charts))
	for i, chart := range bp.Charts {
		path := fmt.Sprintf("charts.%d", i)
		if strings.TrimSpace(chart.ID) == "" {
			errs = append(errs, FieldError{Path: path + ".id", Message: "required"})
		} else if prev, dup := seen[chart.ID]; dup {
			errs = append(errs, FieldError{
				Path:    path + ".id",
				Message: fmt.Sprintf("duplicate chart id %q (first used by charts.%d)", chart.ID, prev),
			})
		} else {
			seen[chart.ID] = i
		}

		switch {
		case strings.TrimSpace(chart.Type) == "":
			errs = append(errs, FieldError{Path: path + ".type", Message: "required"})
		case chart.IsPluginType():
			if chart.PluginName() == "" {
				errs = append(errs, FieldError{Path: path + ".type", Message: "plugin type missing module name"})
			}
		case !IsKnownChartKind(chart.Type):
			errs = append(errs, FieldError{Path: path + ".type", Message: "invalid enum value"})
		}

		if chart.Position.W < 0 || chart.Position.H < 0 {
			errs = append(errs, FieldError{Path: path + ".position", Message: "span must not be negative"})
		}
	}

	for i, filter := range bp.Filters {
		if strings.TrimSpace(filter.Field) == "" {
			errs = append(errs, FieldError{Path: fmt.Sprintf("filters.%d.field", i), Message: "required"})
		}
	}

	if bp.Deployment != nil && bp.Deployment.Publish != nil {
		if ch := bp.Deployment.Publish.Channel; ch != "" && !IsValidChannel(ch) {
			errs = append(errs, FieldError{Path: "deployment.publish.channel", Message: "invalid enum value"})
		}
	}

	if len(errs) > 0 {
		return Blueprint{}, errs
	}
	return bp, nil
}

// decodeStrictShape maps the generic document onto the Blueprint struct.
// Unknown fields (including the legacy id/name/visuals trio) are ignored
// rather than rejected.
func decodeStrictShape(doc map[string]any) (Blueprint, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Blueprint{}, fmt.Errorf("document is not a JSON object: %v", err)
	}
	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return Blueprint{}, fmt.Errorf("document does not match blueprint shape: %v", err)
	}
	return bp, nil
}

func applyDefaults(bp Blueprint) Blueprint {
	if bp.Layout.Type == "" {
		bp.Layout.Type = DefaultLayoutType
	}
	if bp.Layout.Columns == 0 {
		bp.Layout.Columns = DefaultColumns
	}
	if bp.Layout.RowHeight == 0 {
		bp.Layout.RowHeight = DefaultRowHeight
	}
	if bp.Settings.Theme == "" {
		bp.Settings.Theme = DefaultTheme
	}
	for i := range bp.Filters {
		if bp.Filters[i].Component == "" {
			bp.Filters[i].Component = DefaultFilterComponent
		}
	}
	return bp
}
