// Package timeouts defines shared timeout constants used across commands.
package timeouts

import "time"

// ModelRequest caps a single chat-completion request, tool rounds included.
const ModelRequest = 2 * time.Minute

// ReviewRequest caps one review-gate classification call.
const ReviewRequest = 30 * time.Second

// CapabilityInvoke caps one capability invocation made on behalf of a model.
const CapabilityInvoke = 10 * time.Second

// Shutdown limits how long a command waits for telemetry to flush.
const Shutdown = 5 * time.Second
