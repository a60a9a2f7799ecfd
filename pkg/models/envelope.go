package models

import (
	"net/http"
)

// Envelope error codes
const (
	CodeOK       = 0
	CodeInternal = 500
)

// EnvelopeError carries the failure code and message
type EnvelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EnvelopeData carries the boolean verdict
type EnvelopeData struct {
	Result bool `json:"result"`
}

// Envelope is the response body returned for every eligibility request
type Envelope struct {
	Error EnvelopeError `json:"error"`
	Data  EnvelopeData  `json:"data"`
}

// SuccessEnvelope wraps a verdict, whatever its value
func SuccessEnvelope(result bool) Envelope {
	return Envelope{
		Error: EnvelopeError{Code: CodeOK, Message: ""},
		Data:  EnvelopeData{Result: result},
	}
}

// FailureEnvelope reports an error with the result forced to false
func FailureEnvelope(err error) Envelope {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return Envelope{
		Error: EnvelopeError{Code: CodeInternal, Message: msg},
		Data:  EnvelopeData{Result: false},
	}
}

// StatusCode returns the HTTP status matching the envelope
func (e Envelope) StatusCode() int {
	if e.Error.Code != CodeOK {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
