// Package logging provides leveled logging configured via the DEBUG and
// LOG_LEVEL environment variables.
package logging
