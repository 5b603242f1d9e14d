// Package core defines the shared domain model of the multi-user case layer.
//
// The core package provides:
//   - Service identities for the dependencies a collaborating instance needs
//     (case database, keyword search index, messaging, coordination)
//   - Service status values and the immutable ServiceStatusReport
//   - The Event interface and the case-change events exchanged between instances
//
// Types in this package carry no behavior beyond validation and formatting.
// Probing, caching and transport live in the monitor, probe and messenger
// packages respectively.
package core
