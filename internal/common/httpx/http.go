// Package httpx provides HTTP request/response handling utilities shared by
// the gateway's handlers. It includes JSON request parsing, a standard
// response envelope, error rendering, and a handler wrapper that converts
// application errors to HTTP error responses.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/apperrors"
)

// GetRequestData parses a JSON request body into the provided data structure.
// Only supports POST and PUT methods. Returns an error if the body is empty
// or cannot be parsed.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response represents an HTTP response with a status code and a JSON body.
type Response struct {
	StatusCode int
	Response   any
}

// RequestHandler is the handler signature used by the gateway's routes.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp wraps a RequestHandler to provide standardized response
// handling. Application errors are rendered with their status code and
// message; anything else becomes a generic internal error.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				statusCode := appErr.StatusCode()
				if statusCode == 0 {
					statusCode = http.StatusInternalServerError
				}
				httperror := &Error{
					StatusCode:  statusCode,
					Description: appErr.ErrorAll(),
				}
				httperror.Send(w)
			} else {
				ErrApplicationError().Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response)
	})
}
