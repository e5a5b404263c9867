package blueprint

import "strings"

// FieldError is a single validation problem, addressed by a dotted path into
// the document (e.g. "charts.0.type").
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ErrorList is the complete set of problems found in one validation pass.
// Validation never short-circuits; a single call reports every violation.
type ErrorList []FieldError

func (l ErrorList) Error() string {
	msgs := make([]string, 0, len(l))
	for _, e := range l {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Messages returns one human-readable line per problem.
func (l ErrorList) Messages() []string {
	msgs := make([]string, 0, len(l))
	for _, e := range l {
		msgs = append(msgs, e.Error())
	}
	return msgs
}
