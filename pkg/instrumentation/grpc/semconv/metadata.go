// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package semconv

import (
	"context"
	"net/http"

	"google.golang.org/grpc/metadata"
)

// MetadataSupplier is a TextMapCarrier for gRPC metadata
type MetadataSupplier struct {
	metadata *metadata.MD
}

// NewMetadataSupplier creates a new MetadataSupplier
func NewMetadataSupplier(md *metadata.MD) MetadataSupplier {
	return MetadataSupplier{metadata: md}
}

// Get returns the value for a key from metadata
func (s MetadataSupplier) Get(key string) string {
	values := s.metadata.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set sets a key-value pair in metadata
func (s MetadataSupplier) Set(key, value string) {
	s.metadata.Set(key, value)
}

// Keys returns all keys in metadata
func (s MetadataSupplier) Keys() []string {
	out := make([]string, 0, len(*s.metadata))
	for key := range *s.metadata {
		out = append(out, key)
	}
	return out
}

// InjectMetadata adds the first value of every header in hdr to the outgoing
// metadata of ctx. Metadata keys are lowercased.
func InjectMetadata(ctx context.Context, hdr http.Header) context.Context {
	if len(hdr) == 0 {
		return ctx
	}
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}
	carrier := NewMetadataSupplier(&md)
	for k, v := range hdr {
		if len(v) > 0 {
			carrier.Set(k, v[0])
		}
	}
	return metadata.NewOutgoingContext(ctx, md)
}
