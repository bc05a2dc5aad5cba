package formdata

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileContentType is used when the attachment extension is unknown.
const DefaultFileContentType = "application/octet-stream"

// Field is a plain form field.
type Field struct {
	Name  string
	Value string
}

// FilePart names a form field whose value is the content of a file.
type FilePart struct {
	FieldName string
	Path      string
}

// Part is one framed section of a multipart body.
type Part struct {
	Name        string
	Filename    string // empty for plain fields
	ContentType string // empty for plain fields
	Data        []byte
}

// IsFile reports whether the part carries file content.
func (p Part) IsFile() bool {
	return p.Filename != ""
}

// EncodedBody is a complete multipart payload.
type EncodedBody struct {
	Boundary    string
	Bytes       []byte
	ContentType string
	Parts       []Part
}

// Len returns the payload size, which is the value to send as Content-Length.
func (b *EncodedBody) Len() int {
	return len(b.Bytes)
}

// NewFilePart pairs a field name with a file path.
// Both empty means no attachment and returns nil, nil.
func NewFilePart(fieldName, path string) (*FilePart, error) {
	if fieldName == "" && path == "" {
		return nil, nil
	}
	if fieldName == "" || path == "" {
		return nil, &InvalidAttachmentError{FieldName: fieldName, Path: path}
	}
	return &FilePart{FieldName: fieldName, Path: path}, nil
}

// ReadFilePart loads the file and returns it as a part named after the
// path's final segment.
func ReadFilePart(fp FilePart) (Part, error) {
	if fp.FieldName == "" || fp.Path == "" {
		return Part{}, &InvalidAttachmentError{FieldName: fp.FieldName, Path: fp.Path}
	}

	data, err := os.ReadFile(fp.Path)
	if err != nil {
		return Part{}, &FileReadError{Path: fp.Path, Err: err}
	}

	return Part{
		Name:        fp.FieldName,
		Filename:    filepath.Base(fp.Path),
		ContentType: ContentTypeFor(fp.Path),
		Data:        data,
	}, nil
}

// ContentTypeFor guesses a media type from the file extension.
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return DefaultFileContentType
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return DefaultFileContentType
}
