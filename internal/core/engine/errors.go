package engine

import "errors"

var (
	// ErrConfiguration marks an endpoint file that is missing or cannot be
	// compiled. The service must not start serving with it.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransformation marks a document the rule set cannot be applied to
	// at all. Per-field problems never produce it.
	ErrTransformation = errors.New("transformation error")
)
