package cont

import "context"

type ctxKey string

const adminKey ctxKey = "admin"

// PutAdmin marks the request context as authenticated by the admin gate.
func PutAdmin(c context.Context) context.Context {
	return context.WithValue(c, adminKey, true)
}

// IsAdmin reports whether the request passed the admin gate.
func IsAdmin(c context.Context) bool {
	v, ok := c.Value(adminKey).(bool)
	return ok && v
}
