// Package types provides core type definitions and interfaces for the edgeshard library.
//
// This package contains shared types that are used across multiple packages in the
// edgeshard library. By keeping these types in a separate package, we avoid import cycles
// between the main edgeshard package and its internal implementations.
//
// Key types:
//   - VertexID, ProcID: Vertex and machine identifiers
//   - EdgeRecord: The wire shape of one ingress message
//   - State: Ingress lifecycle state
//   - Transport, Cluster, Reducer, BaseIngress, EdgeSink: Collaborator interfaces
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
