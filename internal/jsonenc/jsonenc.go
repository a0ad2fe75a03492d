// Package jsonenc is the module's single JSON codec choice: a drop-in,
// faster replacement for encoding/json used everywhere a job payload,
// checkpoint extra state, or raw provider record crosses a serialization
// boundary. Wire-compatible with encoding/json, so the round-trip
// losslessness invariant on stored payloads is unaffected.
package jsonenc

import json "github.com/goccy/go-json"

var (
	Marshal   = json.Marshal
	Unmarshal = json.Unmarshal
)
