package server

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Read  ReadOptions
	Reply ReplyOptions

	Timeout TimeoutOptions

	// Nil disables metrics.
	Metrics *Metrics
	// Nil uses the global provider.
	TracerProvider trace.TracerProvider
}

type ReadOptions struct {
	ChunkSize      uint // 0 uses request.DefaultChunkSize.
	MaxRequestSize uint // 0 means unbounded.
}

type ReplyOptions struct {
	// Written to every connection right after it is accepted, before reading.
	Banner []byte

	// Nil uses FixedReply(DefaultReply).
	Responder Responder
}

// Zero means no timeout.
type TimeoutOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
