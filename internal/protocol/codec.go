package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrProtocol matches every decode failure via errors.Is.
var ErrProtocol = errors.New("protocol error")

// Error describes why a frame could not be decoded. It is fatal for the
// connection that produced the frame.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrProtocol.
func (e *Error) Is(target error) bool { return target == ErrProtocol }

func protocolErrorf(err error, format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), Err: err}
}

type requestFrame struct {
	Type   Kind   `json:"type"`
	Method Method `json:"method"`
	Body   string `json:"body"`
}

type responseFrame struct {
	Type       Kind   `json:"type"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

type notificationFrame struct {
	Type   Kind             `json:"type"`
	Method Method           `json:"method"`
	Body   NotificationBody `json:"body"`
}

// Encode serializes e as one JSON object terminated by a newline.
func Encode(e Envelope) ([]byte, error) {
	var frame any
	switch v := e.(type) {
	case *Request:
		if v == nil || !isRequestMethod(v.Method) {
			return nil, fmt.Errorf("encode request: unsupported method %q", methodOf(v))
		}
		frame = requestFrame{Type: KindRequest, Method: v.Method, Body: v.Body}
	case *Response:
		if v == nil || !validStatus(v.StatusCode) {
			return nil, fmt.Errorf("encode response: unsupported status code")
		}
		frame = responseFrame{Type: KindResponse, StatusCode: v.StatusCode, Message: v.Message}
	case *Notification:
		if v == nil || !isNotificationMethod(v.Method) {
			return nil, fmt.Errorf("encode notification: unsupported method")
		}
		frame = notificationFrame{Type: KindNotification, Method: v.Method, Body: v.Body}
	default:
		return nil, fmt.Errorf("encode: unsupported envelope %T", e)
	}
	if err := checkUTF8(e); err != nil {
		return nil, err
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append(data, '\n'), nil
}

// checkUTF8 rejects string fields that json.Marshal would silently rewrite.
func checkUTF8(e Envelope) error {
	var fields []string
	switch v := e.(type) {
	case *Request:
		fields = []string{v.Body}
	case *Response:
		fields = []string{v.Message}
	case *Notification:
		fields = []string{v.Body.Data, v.Body.Sender, v.Body.Date}
	}
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return protocolErrorf(nil, "invalid UTF-8 in %s", e.Kind())
		}
	}
	return nil
}

func methodOf(r *Request) Method {
	if r == nil {
		return ""
	}
	return r.Method
}

func validStatus(code int) bool {
	return code == StatusOK || code == StatusBadRequest
}

// Decode parses a single frame. Surrounding whitespace, including the
// trailing newline, is ignored. Any failure is an *Error.
func Decode(line []byte) (Envelope, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, protocolErrorf(nil, "empty frame")
	}
	if !utf8.Valid(line) {
		return nil, protocolErrorf(nil, "invalid UTF-8")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, protocolErrorf(err, "malformed JSON")
	}

	var kind string
	if err := requireField(fields, "type", &kind); err != nil {
		return nil, err
	}

	switch Kind(kind) {
	case KindRequest:
		return decodeRequest(fields)
	case KindResponse:
		return decodeResponse(fields)
	case KindNotification:
		return decodeNotification(fields)
	default:
		return nil, protocolErrorf(nil, "unknown type %q", kind)
	}
}

func decodeRequest(fields map[string]json.RawMessage) (*Request, error) {
	var method, body string
	if err := requireField(fields, "method", &method); err != nil {
		return nil, err
	}
	if !isRequestMethod(Method(method)) {
		return nil, protocolErrorf(nil, "unknown request method %q", method)
	}
	if err := requireField(fields, "body", &body); err != nil {
		return nil, err
	}
	return &Request{Method: Method(method), Body: body}, nil
}

func decodeResponse(fields map[string]json.RawMessage) (*Response, error) {
	var code int
	var message string
	if err := requireField(fields, "status_code", &code); err != nil {
		return nil, err
	}
	if !validStatus(code) {
		return nil, protocolErrorf(nil, "unknown status code %d", code)
	}
	if err := requireField(fields, "message", &message); err != nil {
		return nil, err
	}
	return &Response{StatusCode: code, Message: message}, nil
}

func decodeNotification(fields map[string]json.RawMessage) (*Notification, error) {
	var method string
	if err := requireField(fields, "method", &method); err != nil {
		return nil, err
	}
	if !isNotificationMethod(Method(method)) {
		return nil, protocolErrorf(nil, "unknown notification method %q", method)
	}

	var bodyFields map[string]json.RawMessage
	if err := requireField(fields, "body", &bodyFields); err != nil {
		return nil, err
	}

	var body NotificationBody
	if err := requireField(bodyFields, "data", &body.Data); err != nil {
		return nil, err
	}
	if err := requireField(bodyFields, "date", &body.Date); err != nil {
		return nil, err
	}
	if Method(method) == MethodSendMessage {
		if err := requireField(bodyFields, "sender", &body.Sender); err != nil {
			return nil, err
		}
	} else if raw, ok := bodyFields["sender"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &body.Sender); err != nil {
			return nil, protocolErrorf(err, "field %q has the wrong type", "sender")
		}
	}

	return &Notification{Method: Method(method), Body: body}, nil
}

// requireField decodes fields[name] into dst, failing when the field is
// absent, null, or of the wrong JSON type.
func requireField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return protocolErrorf(nil, "missing field %q", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return protocolErrorf(err, "field %q has the wrong type", name)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
