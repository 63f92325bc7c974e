package service

import (
	"errors"
	"fmt"
	"net/http"
)

// RPCError is the structured {status, message} failure every operation
// surfaces at its boundary. The transport encodes it verbatim, so the edge
// layer can translate without string-matching on messages.
type RPCError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

func NotFoundf(format string, args ...any) *RPCError {
	return &RPCError{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *RPCError {
	return &RPCError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *RPCError {
	return &RPCError{Status: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

func Upstreamf(format string, args ...any) *RPCError {
	return &RPCError{Status: http.StatusBadGateway, Message: fmt.Sprintf(format, args...)}
}

// AsRPCError unwraps err into an *RPCError if one is in the chain.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
