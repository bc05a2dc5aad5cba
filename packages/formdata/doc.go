// Package formdata encodes multipart/form-data request bodies.
//
// It provides:
//   - Ordered form fields and a single file attachment
//   - Boundary generation with a collision check against part contents
//   - A fixed-boundary mode for byte-identical output
//   - Typed errors for ambiguous attachments and unreadable files
//
// Encoding performs no network I/O. The only I/O is reading the attached file.
package formdata
