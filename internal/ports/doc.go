// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [SampleStore]: Durable queue of samples with a synced flag
//   - [PositionSource]: One best-effort position reading on demand
//   - [ConnectivityGate]: Whether a network path is currently available
//   - [Uploader]: One request per sample to the remote collector
//   - [StatusRepository]: Persists the last cycle report
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with SQLite,
// serial NMEA, HTTP and zerolog.
package ports
