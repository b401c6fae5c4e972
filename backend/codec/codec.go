package codec

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/adwski/webrtc-signal-relay/backend/model"
)

// Client facing reasons of decode failures.
const (
	ReasonInvalidJSON   = "Invalid JSON format"
	ReasonMissingFields = "Missing required fields: channelName, userId"
)

var (
	ErrInvalidJSON   = errors.New("message is not valid json")
	ErrMissingFields = errors.New("message misses required fields")
	ErrEncode        = errors.New("unable to encode envelope")
)

// DecodeError is returned when inbound frame cannot be turned into a request.
// Reason is safe to send back to the client.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type inbound struct {
	Type string      `json:"type"`
	Body inboundBody `json:"body"`
}

type inboundBody struct {
	ChannelName string          `json:"channelName"`
	UserID      string          `json:"userId"`
	SDP         json.RawMessage `json:"sdp"`
	Candidate   json.RawMessage `json:"candidate"`
}

// Decode parses raw inbound text into a request.
func Decode(raw []byte) (model.Request, error) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		// well-formed document with fields of unexpected shape
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return model.Request{}, &DecodeError{
				Reason: ReasonMissingFields,
				Err:    errors.Join(ErrMissingFields, err),
			}
		}
		return model.Request{}, &DecodeError{
			Reason: ReasonInvalidJSON,
			Err:    errors.Join(ErrInvalidJSON, err),
		}
	}
	if in.Type == "" || in.Body.ChannelName == "" || in.Body.UserID == "" {
		return model.Request{}, &DecodeError{
			Reason: ReasonMissingFields,
			Err:    ErrMissingFields,
		}
	}

	req := model.Request{
		Type:        in.Type,
		ChannelName: in.Body.ChannelName,
		UserID:      in.Body.UserID,
	}
	switch in.Type {
	case model.EventOffer, model.EventAnswer:
		req.Payload = present(in.Body.SDP)
	case model.EventICECandidate:
		req.Payload = present(in.Body.Candidate)
	}
	return req, nil
}

// present treats explicit null the same way as absent field.
func present(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// Encode produces outbound envelope. Payload of type json.RawMessage is
// forwarded verbatim.
func Encode(eventType string, payload any) ([]byte, error) {
	b, err := json.Marshal(&model.Envelope{
		Type: eventType,
		Body: payload,
	})
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return b, nil
}

// EncodeError produces error envelope with the given message.
func EncodeError(message string) []byte {
	// Message is a plain struct with single string field, marshalling cannot fail.
	b, _ := Encode(model.EventError, model.Message{Message: message})
	return b
}
