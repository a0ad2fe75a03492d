package provider

import (
	"context"
	"net/http"
)

// Endpoint identifies which of PC's three read operations a call is for.
type Endpoint int

const (
	EndpointListDescriptors Endpoint = iota
	EndpointListChanges
	EndpointStartCursor
)

// CallParams carries the pagination inputs common to all three operations.
// PageToken is empty for the initial page of list descriptors and for
// StartCursor (which takes none of these); ExcludeTrashed only applies to
// list descriptors.
type CallParams struct {
	PageToken      string
	PageSize       int
	ExcludeTrashed bool
}

// RawResult is the decoded-enough HTTP response PC classifies and, on
// success, unmarshals further into an operation-specific response type.
type RawResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// AuthenticatedCaller performs the actual authenticated HTTP round trip.
// Credential acquisition and refresh are handled elsewhere; PC receives
// an already-usable caller and never sees a token.
type AuthenticatedCaller interface {
	Call(ctx context.Context, endpoint Endpoint, params CallParams) (*RawResult, error)
}
