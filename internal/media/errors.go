package media

import "fmt"

// MediaError reports a slideshow assembly failure. Path names the offending
// input when there is one.
type MediaError struct {
	Op   string
	Path string
	Err  error
}

func (e *MediaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("media %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("media %s: %v", e.Op, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }
