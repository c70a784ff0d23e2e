package errs

import (
	"strconv"
	"strings"
)

// CodeError is the JSON error body returned by the HTTP API.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Common API errors.
var (
	ErrArgs           = NewCodeError(1001, "invalid argument")
	ErrTokenExpired   = NewCodeError(1501, "token expired or invalid")
	ErrNoPermission   = NewCodeError(1502, "no permission")
	ErrRecordNotFound = NewCodeError(1404, "record not found")
	ErrInternal       = NewCodeError(1500, "internal server error")
)
