package formdata

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBoundary = "testboundary1234567890"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEncode_Deterministic(t *testing.T) {
	path := writeFile(t, "README.md", "# hello\n")
	fields := []Field{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}
	enc := NewEncoder(WithBoundary(testBoundary))

	first, err := enc.Encode(fields, &FilePart{FieldName: "file", Path: path})
	require.NoError(t, err)
	second, err := enc.Encode(fields, &FilePart{FieldName: "file", Path: path})
	require.NoError(t, err)

	assert.Equal(t, first.Bytes, second.Bytes)
	assert.Equal(t, testBoundary, first.Boundary)
	assert.Equal(t, "multipart/form-data; boundary="+testBoundary, first.ContentType)
}

func TestEncode_ExactFraming(t *testing.T) {
	enc := NewEncoder(WithBoundary("xyz"))
	body, err := enc.EncodeParts([]Part{
		{Name: "title", Data: []byte("hi")},
		{Name: "file", Filename: "a.bin", ContentType: "application/octet-stream", Data: []byte{0, 1}},
	})
	require.NoError(t, err)

	expected := "--xyz\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n" +
		"\r\n" +
		"hi\r\n" +
		"--xyz\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.bin\"\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"\x00\x01\r\n" +
		"--xyz--\r\n"
	assert.Equal(t, expected, string(body.Bytes))
	assert.Equal(t, len(expected), body.Len())
}

func TestEncode_RoundTrip(t *testing.T) {
	content := "line one\nline two\n"
	path := writeFile(t, "notes.json", content)

	body, err := Encode(
		[]Field{{Name: "user", Value: "alice"}, {Name: "quote", Value: `say "hi"`}},
		&FilePart{FieldName: "upload", Path: path},
	)
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(body.ContentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)
	assert.Equal(t, body.Boundary, params["boundary"])

	reader := multipart.NewReader(bytes.NewReader(body.Bytes), params["boundary"])

	type seen struct {
		name, filename, contentType, data string
	}
	var parts []seen
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, seen{p.FormName(), p.FileName(), p.Header.Get("Content-Type"), string(data)})
	}

	require.Len(t, parts, 3)
	assert.Equal(t, seen{name: "user", data: "alice"}, parts[0])
	assert.Equal(t, seen{name: "quote", data: `say "hi"`}, parts[1])
	assert.Equal(t, "upload", parts[2].name)
	assert.Equal(t, "notes.json", parts[2].filename)
	assert.Equal(t, "application/json", parts[2].contentType)
	assert.Equal(t, content, parts[2].data)
}

func TestEncode_FileReadError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")

	_, err := Encode(nil, &FilePart{FieldName: "file", Path: missing})

	var fre *FileReadError
	require.ErrorAs(t, err, &fre)
	assert.Equal(t, missing, fre.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewFilePart(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		path      string
		wantNil   bool
		wantErr   bool
	}{
		{name: "both empty", wantNil: true},
		{name: "both set", fieldName: "file", path: "README.md"},
		{name: "only field", fieldName: "file", wantErr: true},
		{name: "only path", path: "README.md", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := NewFilePart(tt.fieldName, tt.path)
			if tt.wantErr {
				var iae *InvalidAttachmentError
				require.ErrorAs(t, err, &iae)
				assert.Nil(t, fp)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, fp)
			} else {
				assert.Equal(t, &FilePart{FieldName: tt.fieldName, Path: tt.path}, fp)
			}
		})
	}
}

func TestEncode_InvalidAttachmentBeforeRead(t *testing.T) {
	_, err := Encode(nil, &FilePart{Path: "/does/not/matter"})

	var iae *InvalidAttachmentError
	assert.ErrorAs(t, err, &iae)
}

func TestEncode_FixedBoundaryCollision(t *testing.T) {
	enc := NewEncoder(WithBoundary("abc"))
	_, err := enc.EncodeParts([]Part{{Name: "x", Data: []byte("prefix --abc suffix")}})

	assert.ErrorIs(t, err, ErrBoundaryCollision)
}

func TestEncode_GeneratedBoundaryRetries(t *testing.T) {
	calls := 0
	enc := NewEncoder(WithBoundaryFunc(func() string {
		calls++
		if calls == 1 {
			return "taken"
		}
		return "free"
	}))

	body, err := enc.EncodeParts([]Part{{Name: "x", Data: []byte("--taken")}})

	require.NoError(t, err)
	assert.Equal(t, "free", body.Boundary)
	assert.Equal(t, 2, calls)
}

func TestGenerateBoundary(t *testing.T) {
	a := GenerateBoundary()
	b := GenerateBoundary()

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 56)
	assert.True(t, strings.HasPrefix(a, strings.Repeat("-", 24)))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("/tmp/pic.PNG"))
	assert.Equal(t, DefaultFileContentType, ContentTypeFor("Makefile"))
}
