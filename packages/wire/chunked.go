package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
)

const maxChunkLineLength = 4096

// readChunked decodes a chunked body into one contiguous buffer and
// consumes the trailer section.
func readChunked(br *bufio.Reader) ([]byte, error) {
	var body bytes.Buffer
	for {
		size, err := readChunkSize(br)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			break
		}
		if _, err := io.CopyN(&body, br, int64(size)); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, protocolErr("reading chunk data", err)
		}
		if err := expectCRLF(br); err != nil {
			return nil, err
		}
	}

	// trailer fields are read and dropped
	for {
		line, err := readChunkLine(br)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return body.Bytes(), nil
		}
	}
}

func readChunkSize(br *bufio.Reader) (uint64, error) {
	line, err := readChunkLine(br)
	if err != nil {
		return 0, err
	}
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimRight(line, " \t")
	if line == "" {
		return 0, protocolErr("empty chunk size", nil)
	}
	if len(line) > 16 {
		return 0, protocolErr("chunk length too large", nil)
	}

	var n uint64
	for i := 0; i < len(line); i++ {
		b := line[i]
		switch {
		case '0' <= b && b <= '9':
			b = b - '0'
		case 'a' <= b && b <= 'f':
			b = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			b = b - 'A' + 10
		default:
			return 0, protocolErr("invalid byte in chunk length", nil)
		}
		n = n<<4 | uint64(b)
	}
	if n > math.MaxInt64 {
		return 0, protocolErr("chunk length too large", nil)
	}
	return n, nil
}

func readChunkLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", protocolErr("reading chunk header", err)
		}
		line = append(line, frag...)
		if len(line) > maxChunkLineLength {
			return "", protocolErr("chunk header line too long", nil)
		}
		if !isPrefix {
			return string(line), nil
		}
	}
}

func expectCRLF(br *bufio.Reader) error {
	cr, err := br.ReadByte()
	if err == nil {
		var lf byte
		lf, err = br.ReadByte()
		if err == nil && (cr != '\r' || lf != '\n') {
			return protocolErr("malformed chunked encoding", nil)
		}
	}
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return protocolErr("reading chunk terminator", err)
	}
	return nil
}
