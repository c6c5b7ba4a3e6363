// Package util provides small helpers shared across caenhv services:
// environment-variable flag defaults, and the frame-popping used while
// walking multipart ZeroMQ messages in core/router.
package util

import "os"

// Getenv retrieves an environment variable with a fallback value.
func Getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// PopStr pops the first element off a string slice, returning it and the
// remainder. Mirrors the frame-popping helper used while walking multipart
// ZeroMQ messages.
func PopStr(msg []string) (head string, tail []string) {
	if len(msg) == 0 {
		return "", msg
	}
	return msg[0], msg[1:]
}

// Unwrap pops the first frame off a multipart message, treating a leading
// empty frame as an address delimiter the way REQ/DEALER envelopes do.
func Unwrap(msg []string) (head string, tail []string) {
	head = msg[0]
	if len(msg) > 1 && msg[1] == "" {
		return head, msg[2:]
	}
	return head, msg[1:]
}
