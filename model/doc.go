// Package model defines the backend client boundary: the minimal request /
// response contract the execution loop speaks with a remote inference service,
// plus the error classification the resilience layer relies on. Concrete
// transports live in the provider subpackages (anthropic, openai).
package model
