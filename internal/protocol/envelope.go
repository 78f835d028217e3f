// Package protocol defines the line-delimited JSON envelopes exchanged between
// chat clients and the server, and the codec that frames them.
//
// Every frame is a single JSON object followed by one newline:
//
//	{"type":"request_c2s","method":"LogInUsername","body":"alice"}
//	{"type":"response","status_code":200,"message":"OK"}
//	{"type":"request_s2c","method":"SendMessage","body":{"data":"hi","sender":"alice","date":"..."}}
package protocol

import "time"

// Kind is the envelope discriminator carried in the "type" field.
type Kind string

const (
	KindRequest      Kind = "request_c2s"
	KindNotification Kind = "request_s2c"
	KindResponse     Kind = "response"
)

// Method names a request or notification operation.
type Method string

const (
	MethodLogInUsername Method = "LogInUsername"
	MethodSendMessage   Method = "SendMessage"
	MethodConnection    Method = "Connection"

	// Reserved: decodable, but no server-side flow exists for them yet.
	MethodLogInPassword    Method = "LogInPassword"
	MethodRegisterUsername Method = "RegisterUsername"
	MethodRegisterPassword Method = "RegisterPassword"
	MethodMessageRead      Method = "MessageRead"
)

// Status codes used in responses.
const (
	StatusOK         = 200
	StatusBadRequest = 400
)

// Response reason codes sent by the server.
const (
	ReasonOK              = "OK"
	ReasonBadRequest      = "BadRequest"
	ReasonInvalidUsername = "InvalidUsername"
	ReasonInvalidMessage  = "InvalidMessage"
	ReasonUsernameTaken   = "UsernameTaken"
	ReasonRateLimited     = "RateLimited"
	ReasonServerFull      = "ServerFull"
)

// DateLayout is the wire format for notification timestamps.
const DateLayout = "2006-01-02 15:04:05 -0700"

// Envelope is one protocol unit: a *Request, *Response or *Notification.
type Envelope interface {
	Kind() Kind
	envelope()
}

// Request is sent from client to server.
type Request struct {
	Method Method
	Body   string
}

// Response acknowledges or rejects a request.
type Response struct {
	StatusCode int
	Message    string
}

// Notification carries chat and system events from server to client.
type Notification struct {
	Method Method
	Body   NotificationBody
}

// NotificationBody is the payload of a Notification. Sender is empty for
// system notices such as Connection.
type NotificationBody struct {
	Data   string `json:"data"`
	Sender string `json:"sender,omitempty"`
	Date   string `json:"date"`
}

func (*Request) Kind() Kind      { return KindRequest }
func (*Response) Kind() Kind     { return KindResponse }
func (*Notification) Kind() Kind { return KindNotification }

func (*Request) envelope()      {}
func (*Response) envelope()     {}
func (*Notification) envelope() {}

// OK reports whether the response carries status 200.
func (r *Response) OK() bool { return r.StatusCode == StatusOK }

// NewResponse builds a response with the given status and reason.
func NewResponse(status int, message string) *Response {
	return &Response{StatusCode: status, Message: message}
}

// NewChatMessage builds a SendMessage notification stamped with at.
func NewChatMessage(sender, data string, at time.Time) *Notification {
	return &Notification{
		Method: MethodSendMessage,
		Body:   NotificationBody{Data: data, Sender: sender, Date: FormatDate(at)},
	}
}

// NewConnectionNotice builds a Connection notification stamped with at.
func NewConnectionNotice(text string, at time.Time) *Notification {
	return &Notification{
		Method: MethodConnection,
		Body:   NotificationBody{Data: text, Date: FormatDate(at)},
	}
}

// FormatDate renders t in UTC using DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a wire timestamp, keeping its offset.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func isRequestMethod(m Method) bool {
	switch m {
	case MethodLogInUsername, MethodSendMessage,
		MethodLogInPassword, MethodRegisterUsername, MethodRegisterPassword:
		return true
	}
	return false
}

func isNotificationMethod(m Method) bool {
	switch m {
	case MethodConnection, MethodSendMessage, MethodMessageRead:
		return true
	}
	return false
}
