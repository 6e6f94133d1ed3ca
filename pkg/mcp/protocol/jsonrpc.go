// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package protocol implements the client side of the Model Context Protocol
// JSON-RPC 2.0 layer spoken by the metrics and log tool providers.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONRPCVersion is the required version string for JSON-RPC 2.0
const JSONRPCVersion = "2.0"

// Methods used by the client.
const (
	MethodInitialize        = "initialize"
	MethodPing              = "ping"
	MethodToolsList         = "tools/list"
	MethodToolsCall         = "tools/call"
	NotificationInitialized = "notifications/initialized"
)

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// RequestID is a JSON-RPC id. The client only issues numeric ids, but
// providers are allowed to echo either form back.
type RequestID struct {
	num   int64
	str   string
	isStr bool
}

// NumericID creates a numeric RequestID.
func NumericID(n int64) *RequestID {
	return &RequestID{num: n}
}

// StringID creates a string RequestID.
func StringID(s string) *RequestID {
	return &RequestID{str: s, isStr: true}
}

// MarshalJSON implements json.Marshaler.
func (r *RequestID) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	if r.isStr {
		return json.Marshal(r.str)
	}
	return json.Marshal(r.num)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*r = RequestID{num: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = RequestID{str: s, isStr: true}
		return nil
	}
	return fmt.Errorf("invalid request id: %s", data)
}

// String returns the id in the form used to correlate responses.
func (r *RequestID) String() string {
	if r == nil {
		return "null"
	}
	if r.isStr {
		return r.str
	}
	return strconv.FormatInt(r.num, 10)
}

// Request is an outgoing JSON-RPC request. A nil ID makes it a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with marshaled params.
func NewRequest(id *RequestID, method string, params interface{}) (*Request, error) {
	req := &Request{JSONRPC: JSONRPCVersion, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewNotification builds a request without an id.
func NewNotification(method string, params interface{}) (*Request, error) {
	return NewRequest(nil, method, params)
}

// Message is any frame read from a provider. Providers may interleave
// responses with their own notifications and requests, so the client decodes
// into this shape first and classifies it.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsResponse reports whether the frame answers one of our requests.
func (m *Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}

// IsNotification reports whether the frame is a provider notification.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// Response converts a response frame.
func (m *Message) Response() *Response {
	return &Response{JSONRPC: m.JSONRPC, ID: m.ID, Result: m.Result, Error: m.Error}
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewError creates a JSON-RPC error, marshaling data when present.
func NewError(code int, message string, data interface{}) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}
