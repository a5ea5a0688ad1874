// Package protocol defines the JSON frames exchanged over a negotiation
// websocket.  Every frame is {"type", "ref", "topic", "payload"}; the set of
// payload types is closed, and Decode rejects anything outside it.
//
// ref is chosen by the client and echoed on the ack or error that answers
// an action.  topic is set by the server on broadcast frames.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type discriminates a frame.
type Type string

// Client to server.
const (
	TypeAuth           Type = "auth"
	TypeSubscribe      Type = "subscribe"
	TypeUnsubscribe    Type = "unsubscribe"
	TypeCreateRequest  Type = "create_request"
	TypeSubmitResponse Type = "submit_response"
	TypeAcceptResponse Type = "accept_response"
	TypeRejectResponse Type = "reject_response"
	TypeCloseRequest   Type = "close_request"
	TypePing           Type = "ping"
)

// Server to client.
const (
	TypeAuthSuccess       Type = "auth_success"
	TypeSubscribed        Type = "subscribed"
	TypeUnsubscribed      Type = "unsubscribed"
	TypeAck               Type = "ack"
	TypeError             Type = "error"
	TypeRequestCreated    Type = "request_created"
	TypeResponseSubmitted Type = "response_submitted"
	TypeResponseAccepted  Type = "response_accepted"
	TypeResponseRejected  Type = "response_rejected"
	TypeRequestExpired    Type = "request_expired"
	TypeRequestClosed     Type = "request_closed"
	TypePong              Type = "pong"
)

// ErrUnknownType is returned by Decode for a well-formed frame whose type is
// not part of the protocol.
var ErrUnknownType = errors.New("protocol: unknown message type")

// Message is implemented only by the payload types of this package.
type Message interface {
	Type() Type
	isMessage()
}

// Envelope is a decoded frame.
type Envelope struct {
	Ref     string
	Topic   Topic
	Message Message
}

type frame struct {
	Type    Type            `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Topic   Topic           `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serialises env into a single JSON frame.
func Encode(env Envelope) ([]byte, error) {
	if env.Message == nil {
		return nil, errors.New("protocol: nil message")
	}
	payload, err := json.Marshal(env.Message)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s: %w", env.Message.Type(), err)
	}
	return json.Marshal(frame{Type: env.Message.Type(), Ref: env.Ref, Topic: env.Topic, Payload: payload})
}

// Decode parses a frame.  When the payload cannot be placed the returned
// envelope still carries Ref, so the sender can be answered.
func Decode(data []byte) (Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Envelope{}, fmt.Errorf("protocol: %w", err)
	}
	env := Envelope{Ref: f.Ref, Topic: f.Topic}
	msg, err := decodePayload(f.Type, f.Payload)
	if err != nil {
		return env, err
	}
	env.Message = msg
	return env, nil
}

func decodePayload(t Type, raw json.RawMessage) (Message, error) {
	var target Message
	switch t {
	case TypeAuth:
		target = &Auth{}
	case TypeSubscribe:
		target = &Subscribe{}
	case TypeUnsubscribe:
		target = &Unsubscribe{}
	case TypeCreateRequest:
		target = &CreateRequest{}
	case TypeSubmitResponse:
		target = &SubmitResponse{}
	case TypeAcceptResponse:
		target = &AcceptResponse{}
	case TypeRejectResponse:
		target = &RejectResponse{}
	case TypeCloseRequest:
		target = &CloseRequest{}
	case TypePing:
		target = &Ping{}
	case TypeAuthSuccess:
		target = &AuthSuccess{}
	case TypeSubscribed:
		target = &Subscribed{}
	case TypeUnsubscribed:
		target = &Unsubscribed{}
	case TypeAck:
		target = &Ack{}
	case TypeError:
		target = &Error{}
	case TypeRequestCreated:
		target = &RequestCreated{}
	case TypeResponseSubmitted:
		target = &ResponseSubmitted{}
	case TypeResponseAccepted:
		target = &ResponseAccepted{}
	case TypeResponseRejected:
		target = &ResponseRejected{}
	case TypeRequestExpired:
		target = &RequestExpired{}
	case TypeRequestClosed:
		target = &RequestClosed{}
	case TypePong:
		target = &Pong{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", t, err)
		}
	}
	return deref(target), nil
}

// deref returns the value form so callers type-switch on value types only.
func deref(m Message) Message {
	switch v := m.(type) {
	case *Auth:
		return *v
	case *Subscribe:
		return *v
	case *Unsubscribe:
		return *v
	case *CreateRequest:
		return *v
	case *SubmitResponse:
		return *v
	case *AcceptResponse:
		return *v
	case *RejectResponse:
		return *v
	case *CloseRequest:
		return *v
	case *Ping:
		return *v
	case *AuthSuccess:
		return *v
	case *Subscribed:
		return *v
	case *Unsubscribed:
		return *v
	case *Ack:
		return *v
	case *Error:
		return *v
	case *RequestCreated:
		return *v
	case *ResponseSubmitted:
		return *v
	case *ResponseAccepted:
		return *v
	case *ResponseRejected:
		return *v
	case *RequestExpired:
		return *v
	case *RequestClosed:
		return *v
	case *Pong:
		return *v
	}
	return m
}

// ---- client to server ----

type Auth struct {
	UserID string `json:"userId,omitempty"`
	Token  string `json:"token"`
}

type Subscribe struct {
	Topic Topic `json:"topic"`
}

type Unsubscribe struct {
	Topic Topic `json:"topic"`
}

type CreateRequest struct {
	CategoryID        string    `json:"categoryId"`
	City              string    `json:"city"`
	EventDate         time.Time `json:"eventDate"`
	BudgetMin         int64     `json:"budgetMin"`
	BudgetMax         int64     `json:"budgetMax"`
	AdditionalDetails string    `json:"additionalDetails,omitempty"`
}

type SubmitResponse struct {
	RequestID     string `json:"requestId"`
	ResponseType  string `json:"responseType"`
	ProposedPrice *int64 `json:"proposedPrice,omitempty"`
	Message       string `json:"message,omitempty"`
}

type AcceptResponse struct {
	RequestID  string `json:"requestId"`
	ResponseID string `json:"responseId"`
}

type RejectResponse struct {
	RequestID  string `json:"requestId"`
	ResponseID string `json:"responseId"`
}

type CloseRequest struct {
	RequestID string `json:"requestId"`
}

type Ping struct{}

// ---- server to client ----

type AuthSuccess struct {
	UserID string `json:"userId"`
}

type Subscribed struct {
	Topic Topic `json:"topic"`
}

type Unsubscribed struct {
	Topic Topic `json:"topic"`
}

// Ack confirms an action; ID names the record it created or changed.
type Ack struct {
	ID string `json:"id,omitempty"`
}

// Error reports a typed failure of the action identified by the frame ref.
type Error struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RequestCreated struct {
	RequestSnapshot
}

type ResponseSubmitted struct {
	ResponseSnapshot
}

type ResponseAccepted struct {
	RequestID  string `json:"requestId"`
	ResponseID string `json:"responseId"`
}

type ResponseRejected struct {
	RequestID  string `json:"requestId"`
	ResponseID string `json:"responseId"`
}

type RequestExpired struct {
	RequestID string `json:"requestId"`
}

type RequestClosed struct {
	RequestID string `json:"requestId"`
}

type Pong struct{}

func (Auth) Type() Type              { return TypeAuth }
func (Subscribe) Type() Type         { return TypeSubscribe }
func (Unsubscribe) Type() Type       { return TypeUnsubscribe }
func (CreateRequest) Type() Type     { return TypeCreateRequest }
func (SubmitResponse) Type() Type    { return TypeSubmitResponse }
func (AcceptResponse) Type() Type    { return TypeAcceptResponse }
func (RejectResponse) Type() Type    { return TypeRejectResponse }
func (CloseRequest) Type() Type      { return TypeCloseRequest }
func (Ping) Type() Type              { return TypePing }
func (AuthSuccess) Type() Type       { return TypeAuthSuccess }
func (Subscribed) Type() Type        { return TypeSubscribed }
func (Unsubscribed) Type() Type      { return TypeUnsubscribed }
func (Ack) Type() Type               { return TypeAck }
func (Error) Type() Type             { return TypeError }
func (RequestCreated) Type() Type    { return TypeRequestCreated }
func (ResponseSubmitted) Type() Type { return TypeResponseSubmitted }
func (ResponseAccepted) Type() Type  { return TypeResponseAccepted }
func (ResponseRejected) Type() Type  { return TypeResponseRejected }
func (RequestExpired) Type() Type    { return TypeRequestExpired }
func (RequestClosed) Type() Type     { return TypeRequestClosed }
func (Pong) Type() Type              { return TypePong }

func (Auth) isMessage()              {}
func (Subscribe) isMessage()         {}
func (Unsubscribe) isMessage()       {}
func (CreateRequest) isMessage()     {}
func (SubmitResponse) isMessage()    {}
func (AcceptResponse) isMessage()    {}
func (RejectResponse) isMessage()    {}
func (CloseRequest) isMessage()      {}
func (Ping) isMessage()              {}
func (AuthSuccess) isMessage()       {}
func (Subscribed) isMessage()        {}
func (Unsubscribed) isMessage()      {}
func (Ack) isMessage()               {}
func (Error) isMessage()             {}
func (RequestCreated) isMessage()    {}
func (ResponseSubmitted) isMessage() {}
func (ResponseAccepted) isMessage()  {}
func (ResponseRejected) isMessage()  {}
func (RequestExpired) isMessage()    {}
func (RequestClosed) isMessage()     {}
func (Pong) isMessage()              {}
