// Package wire implements HTTP/1.1 message syntax (RFC 9112) for a single
// request/response exchange on a byte stream.
//
// Requests are written with caller header casing and order preserved.
// Responses are read completely: the body is framed by Content-Length,
// chunked transfer-coding, or connection close, and returned as one buffer.
package wire
