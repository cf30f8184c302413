package remote

import (
	"errors"
	"net/http"
	"time"

	"github.com/idilsaglam/todosync/internal/docstore"
)

// JSON bodies exchanged between Client and Server.

type queryResponse struct {
	Documents []docstore.Document `json:"documents"`
}

type commitRequest struct {
	Writes []docstore.Write `json:"writes"`
}

type commitResponse struct {
	CommitTime time.Time `json:"commitTime"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// listenFrame is one server-to-client WebSocket message.
type listenFrame struct {
	Documents []docstore.Document `json:"documents"`
	Error     string              `json:"error,omitempty"`
}

const (
	codeNotFound      = "not_found"
	codeAlreadyExists = "already_exists"
	codeInvalid       = "invalid_argument"
	codeUnauthorized  = "unauthenticated"
	codeUnavailable   = "unavailable"
	codeInternal      = "internal"
)

// ErrUnauthenticated is returned when the server rejects the token.
var ErrUnauthenticated = errors.New("unauthenticated")

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, docstore.ErrAlreadyExists):
		return http.StatusConflict, codeAlreadyExists
	case errors.Is(err, docstore.ErrInvalidArgument):
		return http.StatusBadRequest, codeInvalid
	case errors.Is(err, docstore.ErrClosed):
		return http.StatusServiceUnavailable, codeUnavailable
	}
	return http.StatusInternalServerError, codeInternal
}

func errorFor(code string) error {
	switch code {
	case codeNotFound:
		return docstore.ErrNotFound
	case codeAlreadyExists:
		return docstore.ErrAlreadyExists
	case codeInvalid:
		return docstore.ErrInvalidArgument
	case codeUnauthorized:
		return ErrUnauthenticated
	case codeUnavailable:
		return docstore.ErrClosed
	}
	return nil
}
