package formdata

import (
	"errors"
	"fmt"
)

// ErrBoundaryCollision is returned when a fixed boundary appears inside a part.
var ErrBoundaryCollision = errors.New("formdata: boundary occurs in part data")

// InvalidAttachmentError reports an attachment with only one of field name or path set.
type InvalidAttachmentError struct {
	FieldName string
	Path      string
	Reason    string
}

func (e *InvalidAttachmentError) Error() string {
	if e.Reason != "" {
		return "invalid attachment: " + e.Reason
	}
	switch {
	case e.FieldName == "":
		return fmt.Sprintf("invalid attachment: file %q has no field name", e.Path)
	case e.Path == "":
		return fmt.Sprintf("invalid attachment: field %q has no file", e.FieldName)
	}
	return "invalid attachment"
}

// FileReadError reports an attachment file that could not be read.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read attachment %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}
