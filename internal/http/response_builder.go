// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON and HTML
// responses with consistent headers and status codes.

package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the JSON body. Encoding failures turn the response into
// a 500 with a fixed error body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	raw, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		b.body = []byte(`{"ok":false,"error":"encoding failed"}`)
		return b
	}
	b.body = raw
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *ResponseBuilder) BodyHTML(html string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// JSONError is the upload endpoints' error shape: {"error": message}.
func JSONError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(map[string]string{"error": message})
}

// APIError is the budget endpoints' error shape: {"ok": false, "error": message}.
func APIError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(map[string]any{"ok": false, "error": message})
}

// BadRequestError creates a 400 API error response.
func BadRequestError(message string) *ResponseBuilder {
	return APIError(http.StatusBadRequest, message)
}

// InternalServerError creates a 500 API error response.
func InternalServerError(message string) *ResponseBuilder {
	return APIError(http.StatusInternalServerError, message)
}

// ErrorPage is a minimal HTML error used when templates are unavailable.
// The message is HTML-escaped.
func ErrorPage(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}
