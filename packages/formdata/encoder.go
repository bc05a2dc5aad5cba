package formdata

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// maxBoundaryAttempts bounds regeneration when a generated boundary collides.
const maxBoundaryAttempts = 8

// Encoder frames parts into a multipart/form-data body.
type Encoder struct {
	boundary     string
	boundaryFunc func() string
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithBoundary fixes the boundary. Output becomes byte-identical for identical input.
func WithBoundary(boundary string) EncoderOption {
	return func(e *Encoder) {
		e.boundary = boundary
	}
}

// WithBoundaryFunc replaces the boundary generator.
func WithBoundaryFunc(fn func() string) EncoderOption {
	return func(e *Encoder) {
		e.boundaryFunc = fn
	}
}

func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{
		boundaryFunc: GenerateBoundary,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEncoder = NewEncoder()

// Encode encodes fields and an optional file with the default encoder.
func Encode(fields []Field, file *FilePart) (*EncodedBody, error) {
	return defaultEncoder.Encode(fields, file)
}

// GenerateBoundary returns 24 dashes followed by 32 random hex digits.
func GenerateBoundary() string {
	id := uuid.New()
	return strings.Repeat("-", 24) + strings.ReplaceAll(id.String(), "-", "")
}

// Encode emits fields in slice order followed by the file part, if any.
func (e *Encoder) Encode(fields []Field, file *FilePart) (*EncodedBody, error) {
	parts := make([]Part, 0, len(fields)+1)
	for _, f := range fields {
		parts = append(parts, Part{Name: f.Name, Data: []byte(f.Value)})
	}

	if file != nil {
		part, err := ReadFilePart(*file)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	return e.EncodeParts(parts)
}

// EncodeParts frames parts in order.
func (e *Encoder) EncodeParts(parts []Part) (*EncodedBody, error) {
	boundary, err := e.pickBoundary(parts)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("invalid boundary %q: %w", boundary, err)
	}

	for _, part := range parts {
		w, err := writer.CreatePart(partHeader(part))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.Data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return &EncodedBody{
		Boundary:    boundary,
		Bytes:       body.Bytes(),
		ContentType: writer.FormDataContentType(),
		Parts:       parts,
	}, nil
}

func (e *Encoder) pickBoundary(parts []Part) (string, error) {
	if e.boundary != "" {
		if collides(e.boundary, parts) {
			return "", ErrBoundaryCollision
		}
		return e.boundary, nil
	}

	gen := e.boundaryFunc
	if gen == nil {
		gen = GenerateBoundary
	}
	for i := 0; i < maxBoundaryAttempts; i++ {
		b := gen()
		if !collides(b, parts) {
			return b, nil
		}
	}
	return "", ErrBoundaryCollision
}

func collides(boundary string, parts []Part) bool {
	delim := []byte("--" + boundary)
	for _, p := range parts {
		if bytes.Contains(p.Data, delim) {
			return true
		}
	}
	return false
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func partHeader(p Part) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.Name))
	if p.IsFile() {
		disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(p.Filename))
	}
	h.Set("Content-Disposition", disposition)

	if p.ContentType != "" {
		h.Set("Content-Type", p.ContentType)
	} else if p.IsFile() {
		h.Set("Content-Type", DefaultFileContentType)
	}
	return h
}
