package model

// Caller is the identity attached to a request by the auth middleware.
// Subject is empty for anonymous guests, who may present a GuestToken
// issued when their booking was created.
type Caller struct {
	Subject    string
	IsAdmin    bool
	GuestToken string
}

// Authenticated reports whether the caller carried a valid bearer token.
func (c Caller) Authenticated() bool { return c.Subject != "" }
