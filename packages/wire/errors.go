package wire

// ProtocolError reports a response that does not follow HTTP/1.1 framing.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "protocol error: " + e.Msg + ": " + e.Err.Error()
	}
	return "protocol error: " + e.Msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolErr(msg string, err error) error {
	return &ProtocolError{Msg: msg, Err: err}
}
