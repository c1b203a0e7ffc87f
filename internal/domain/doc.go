// Package domain contains the core domain entities and value objects for reportship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (SMTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Table]: An immutable record table with typed columns
//   - [Artifact]: A named, typed payload produced by the renderer
//   - [RecipientSet]: Validated, de-duplicated delivery addresses
//   - [RunRecord]: The outcome of one pipeline execution
//   - [Chart]: Backend-neutral chart data handed to a chart backend
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
