package codec

import "encoding/json"

// JSON is the standard library JSON codec. Output is byte compatible with
// GoJSON for the descriptor and manifest types, so either can read blobs
// written by the other.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns "json".
func (JSON) Name() string { return "json" }

// Default is the codec used for newly written blobs and manifests.
var Default Codec = GoJSON{}
