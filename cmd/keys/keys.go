package keys

import "dcaengine/src/auth"

// Hash produces the bcrypt hash stored in the users table for an API key.
func Hash(key string) (string, error) {
	return auth.HashKey(key)
}
