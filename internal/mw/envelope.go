package mw

// Envelope is the body shape of every API response.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload"`
}

// Envelope status codes produced by the middleware itself.
const (
	StatusUnauthenticated = 11
	StatusRateLimited     = 12
)
