package http

import (
	"sort"
	"strconv"

	"github.com/abdul-hamid-achik/multisync/packages/wire"
)

// Version is reported in the default User-Agent.
const Version = "0.1.0"

// DefaultUserAgent is sent unless overridden.
const DefaultUserAgent = "multisync/" + Version

// defaultTemplate is the baseline every request starts from.
var defaultTemplate = wire.Header{
	{Name: "User-Agent", Value: DefaultUserAgent},
	{Name: "Accept", Value: "*/*"},
	{Name: "Connection", Value: "close"},
}

// DefaultHeaders returns a copy of the baseline header template.
func DefaultHeaders() wire.Header {
	return defaultTemplate.Clone()
}

// buildHeader layers, later winning: Host, template, client defaults,
// computed body headers, caller headers.
func buildHeader(hostHeader, method string, clientDefaults, caller map[string]string, contentType string, body []byte) wire.Header {
	h := wire.Header{{Name: "Host", Value: hostHeader}}
	h = append(h, defaultTemplate.Clone()...)

	setSorted(&h, clientDefaults)

	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if len(body) > 0 || (method != "GET" && method != "HEAD") {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}

	setSorted(&h, caller)
	return h
}

// setSorted applies m in key order so the wire bytes are reproducible.
func setSorted(h *wire.Header, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, m[k])
	}
}
