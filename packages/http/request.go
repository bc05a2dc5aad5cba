package http

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/multisync/packages/formdata"
)

const (
	// DefaultPort is used when Options.Port is zero.
	DefaultPort = 80
	// DefaultPath is used when Options.Path is empty.
	DefaultPath = "/"
)

// Options describes one request. The client never modifies it.
type Options struct {
	Host    string
	Port    int
	Path    string
	Method  string // GET, or POST when a body is present
	Headers map[string]string

	// CopyName and File attach the file's bytes as a multipart field.
	// Both or neither must be set.
	CopyName string
	File     string

	// Fields are extra multipart form fields, sent in order before the file.
	Fields []formdata.Field

	// Body is a raw request body. It cannot be combined with CopyName,
	// File or Fields.
	Body []byte

	// Timeout bounds the whole exchange; ConnectTimeout bounds the dial.
	// Zero falls back to the client setting.
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// NewOptions returns options for a request to host:port on path.
func NewOptions(host string, port int, path string) *Options {
	return &Options{
		Host:    host,
		Port:    port,
		Path:    path,
		Headers: make(map[string]string),
	}
}

func (o *Options) SetField(name, value string) *Options {
	o.Fields = append(o.Fields, formdata.Field{Name: name, Value: value})
	return o
}

// Attach sets the multipart field name and file path.
func (o *Options) Attach(copyName, file string) *Options {
	o.CopyName = copyName
	o.File = file
	return o
}

func (o *Options) validate() error {
	if o.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidOptions)
	}
	if strings.ContainsAny(o.Host, " /\r\n") {
		return fmt.Errorf("%w: invalid host %q", ErrInvalidOptions, o.Host)
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidOptions, o.Port)
	}
	if o.Path != "" && o.Path[0] != '/' && o.Path != "*" {
		return fmt.Errorf("%w: path %q must start with /", ErrInvalidOptions, o.Path)
	}
	return nil
}

func (o *Options) port() int {
	if o.Port == 0 {
		return DefaultPort
	}
	return o.Port
}

func (o *Options) path() string {
	if o.Path == "" {
		return DefaultPath
	}
	return o.Path
}

// addr is the dial address.
func (o *Options) addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.port()))
}

// hostHeader omits the default port.
func (o *Options) hostHeader() string {
	if o.port() == DefaultPort {
		if strings.Contains(o.Host, ":") {
			return "[" + o.Host + "]"
		}
		return o.Host
	}
	return o.addr()
}

func (o *Options) method(hasBody bool) string {
	if o.Method != "" {
		return strings.ToUpper(o.Method)
	}
	if hasBody {
		return "POST"
	}
	return "GET"
}

// URL is the absolute form of the request target.
func (o *Options) URL() string {
	return "http://" + o.hostHeader() + o.path()
}
