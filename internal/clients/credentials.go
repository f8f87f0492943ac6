package clients

import (
	"context"
	"net/http"
)

// Credentials identify the admin and tenant on whose behalf a call is made
type Credentials struct {
	BearerToken string
	TenantID    string
	UserID      string
}

type credentialsKey struct{}

// WithCredentials attaches credentials to ctx for the request interceptor
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFromContext returns the credentials attached to ctx, if any
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}

// RequestInterceptor mutates an outgoing request before it is sent
type RequestInterceptor func(req *http.Request) error

// ForwardCredentials sets the bearer token and tenant headers from the
// request context. Requests without credentials go out unauthenticated.
func ForwardCredentials() RequestInterceptor {
	return func(req *http.Request) error {
		creds, ok := CredentialsFromContext(req.Context())
		if !ok {
			return nil
		}
		if creds.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+creds.BearerToken)
		}
		if creds.TenantID != "" {
			req.Header.Set("X-Tenant-ID", creds.TenantID)
			req.Header.Set("Retailer-Domain", creds.TenantID)
		}
		if creds.UserID != "" {
			req.Header.Set("X-User-ID", creds.UserID)
		}
		return nil
	}
}
