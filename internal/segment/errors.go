package segment

import "fmt"

// OpenError means the source document could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// RenderError means one page could not be rasterized.
type RenderError struct {
	Path string
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s page %d: %v", e.Path, e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// WriteError means a segment could not be persisted at Path.
type WriteError struct {
	Path  string
	Pages []int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write segment %s (pages %v): %v", e.Path, e.Pages, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
