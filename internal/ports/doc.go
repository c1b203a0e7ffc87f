// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// pipeline needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [MailSender]: Submits one message to a mail relay
//   - [ChartBackend]: Draws a prepared chart into an image
//   - [ArtifactStore]: Persists rendered artifacts to the output medium
//   - [RunLog]: Appends finished run records
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with SMTP,
// gonum/plot and the file system.
package ports
