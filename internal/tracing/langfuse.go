// Package tracing wires the optional Langfuse observability integration for
// chat-model calls. Tracing is off unless both Langfuse keys are configured.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/corpuslabs/ragd/internal/config"
)

// Setup initialises the Langfuse callback handler from the tracing settings.
// Returns a flush function that must be called before process exit to ensure
// all traces are sent. If Langfuse is not configured, both return values are
// nil and tracing is silently disabled.
func Setup(set config.TracingSettings) (callbacks.Handler, func(), bool) {
	if !set.Enabled() {
		return nil, nil, false
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      set.Host,
		PublicKey: set.PublicKey,
		SecretKey: set.SecretKey,
	})

	return handler, flusher, true
}
