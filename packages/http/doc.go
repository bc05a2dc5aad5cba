// Package http issues single HTTP/1.1 requests that return a fully buffered
// response by ordinary return.
//
// It provides:
//   - Request building from host, port, path, method and headers
//   - Multipart form data bodies with one file attachment
//   - A default header template merged under caller headers
//   - A blocking call: network I/O runs on a worker goroutine while the
//     caller waits for exactly one response or error
//   - Typed errors for attachment, file, connection, protocol and timeout failures
package http
