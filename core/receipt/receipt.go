// Package receipt implements the wire envelope every caenhv service
// exchanges through the broker: an immutable request/reply record carrying
// a sender, an executor, an operation title, a parameter bag, and
// (eventually) a response.
package receipt

import (
	"encoding/json"
	"time"
)

// Status codes used in ReceiptResponse.StatusCode.
const (
	StatusOK              = 1
	StatusApplicationFail = 0
	StatusForbidden       = 403
	StatusNotFound        = 404
	StatusGatewayTimeout  = 503
)

// ReceiptResponse carries the outcome of a Receipt once it has been
// executed (or failed to route).
type ReceiptResponse struct {
	StatusCode int         `json:"statuscode"`
	Body       interface{} `json:"body"`
	Timestamp  int64       `json:"timestamp"`
}

// NewResponse builds a ReceiptResponse stamped with the current time.
func NewResponse(statusCode int, body interface{}) *ReceiptResponse {
	return &ReceiptResponse{
		StatusCode: statusCode,
		Body:       body,
		Timestamp:  time.Now().Unix(),
	}
}

// AsMap returns the response body as a map, or false if it isn't one.
func (r *ReceiptResponse) AsMap() (map[string]interface{}, bool) {
	if r == nil {
		return nil, false
	}
	m, ok := r.Body.(map[string]interface{})
	return m, ok
}

// AsString returns the response body as a string, or false if it isn't one.
func (r *ReceiptResponse) AsString() (string, bool) {
	if r == nil {
		return "", false
	}
	s, ok := r.Body.(string)
	return s, ok
}

// IsOK reports whether the response indicates application-level success.
func (r *ReceiptResponse) IsOK() bool {
	return r != nil && r.StatusCode == StatusOK
}

// Receipt is the immutable envelope of one request/reply exchange.
type Receipt struct {
	Sender    string                 `json:"sender"`
	Executor  string                 `json:"executor"`
	Title     string                 `json:"title"`
	Params    map[string]interface{} `json:"params"`
	Timestamp int64                  `json:"timestamp"`
	Response  *ReceiptResponse       `json:"response,omitempty"`
}

// New creates a Receipt stamped with the current time, ready to send.
func New(sender, executor, title string, params map[string]interface{}) *Receipt {
	if params == nil {
		params = map[string]interface{}{}
	}
	return &Receipt{
		Sender:    sender,
		Executor:  executor,
		Title:     title,
		Params:    params,
		Timestamp: time.Now().Unix(),
	}
}

// WithResponse returns the receipt stamped with a response, for replying.
func (r *Receipt) WithResponse(statusCode int, body interface{}) *Receipt {
	r.Response = NewResponse(statusCode, body)
	return r
}

// Encode serializes the receipt to its wire form.
func Encode(r *Receipt) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a receipt from its wire form. It mirrors the Python
// decoder's rule of recognizing a receipt payload by the simultaneous
// presence of "sender" and "executor": a malformed payload missing either
// key is rejected rather than silently accepted as a zero-value Receipt.
func Decode(data []byte) (*Receipt, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if _, hasSender := probe["sender"]; !hasSender {
		return nil, errNotAReceipt
	}
	if _, hasExecutor := probe["executor"]; !hasExecutor {
		return nil, errNotAReceipt
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
