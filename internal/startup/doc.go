// Package startup handles application initialization: environment-driven
// configuration with validation, build information, and the structured
// startup/shutdown log output.
package startup
