package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRequest(t *testing.T) {
	tests := map[string]struct {
		req  *Request
		want string
	}{
		"BasicGet": {
			req: &Request{
				Method: "GET",
				Path:   "/",
				Header: Header{{Name: "Host", Value: "www.example.com"}},
			},
			want: "GET / HTTP/1.1\r\nHost: www.example.com\r\n\r\n",
		},
		"HeaderCasingPreserved": {
			req: &Request{
				Method: "GET",
				Path:   "/test?1=33=1",
				Header: Header{
					{Name: "Host", Value: "example.com"},
					{Name: "x-123-vv", Value: "1"},
					{Name: "X-BB-SESSION", Value: "abc"},
				},
			},
			want: "GET /test?1=33=1 HTTP/1.1\r\nHost: example.com\r\nx-123-vv: 1\r\nX-BB-SESSION: abc\r\n\r\n",
		},
		"WithBody": {
			req: &Request{
				Method: "POST",
				Path:   "/file",
				Header: Header{{Name: "Host", Value: "h"}, {Name: "Content-Length", Value: "5"}},
				Body:   []byte("hello"),
			},
			want: "POST /file HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRequest(&buf, tt.req))
			assert.Equal(t, tt.want, buf.String())
			assert.Equal(t, len(tt.want)-len(tt.req.Body), tt.req.HeadSize())
		})
	}
}

func TestWriteRequest_Invalid(t *testing.T) {
	tests := map[string]*Request{
		"EmptyMethod":     {Path: "/"},
		"MethodWithSpace": {Method: "G ET", Path: "/"},
		"RelativePath":    {Method: "GET", Path: "file"},
		"PathWithSpace":   {Method: "GET", Path: "/a b"},
		"BadHeaderName":   {Method: "GET", Path: "/", Header: Header{{Name: "Bad Name", Value: "v"}}},
		"HeaderInjection": {Method: "GET", Path: "/", Header: Header{{Name: "X-A", Value: "v\r\nX-B: w"}}},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Error(t, WriteRequest(&buf, req))
			assert.Zero(t, buf.Len())
		})
	}
}

func TestHeader_SetGetDel(t *testing.T) {
	h := Header{{Name: "Accept", Value: "*/*"}, {Name: "X-One", Value: "1"}}

	h.Set("accept", "application/json")
	assert.Equal(t, Header{{Name: "accept", Value: "application/json"}, {Name: "X-One", Value: "1"}}, h)
	assert.Equal(t, "1", h.Get("x-one"))
	assert.True(t, h.Has("X-ONE"))

	h.Set("X-Two", "2")
	assert.Len(t, h, 3)

	h.Del("x-one")
	assert.False(t, h.Has("X-One"))
	assert.Equal(t, "", h.Get("X-One"))
}
