package handlers

// Version is set at startup from the build version.
var Version = "dev"

// ErrorResponse is the JSON error body returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
