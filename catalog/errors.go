package catalog

import "errors"

// ErrModelNotFound is returned by Describe for an unknown model name.
var ErrModelNotFound = errors.New("catalog: model not found")
