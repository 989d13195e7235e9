// Package application provides application initialization and dependency wiring.
// It selects the bill detection source and assembles storage, the dispenser,
// metrics, handlers, routers and the HTTP server, keeping the main package
// focused on CLI parsing and orchestration.
package application
