package trello

import "fmt"

// LoadError reports an input file that is missing, unreadable or not valid JSON.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SchemaError reports a required key that is absent or has the wrong shape.
type SchemaError struct {
	Key     string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Key == "" {
		return "invalid board export: " + e.Message
	}
	return fmt.Sprintf("invalid board export: %q %s", e.Key, e.Message)
}
