// Package core provides the foundational components shared by the
// high-voltage supervisor services: version metadata and the utility,
// configuration, logging, receipt, and router packages beneath it.
package core

// VERSION of the project, set during the build process with -ldflags.
var VERSION = "undefined"
