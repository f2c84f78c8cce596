package types

// ------------------------
// Retained lifecycle state published on the bus
// ------------------------

// AppState is retained on app/active.
type AppState struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// ProvisioningState is retained on prov/state.
type ProvisioningState struct {
	State     string `json:"state"` // "dormant","advertising","connected","timed_out","applied"
	Connected bool   `json:"connected"`
	Remaining int64  `json:"remaining_ms"`
	Detail    string `json:"detail,omitempty"`
}

// OTAState is retained on ota/state.
type OTAState struct {
	State   string `json:"state"`
	Version string `json:"version,omitempty"`
	Written int64  `json:"written,omitempty"`
	Total   int64  `json:"total,omitempty"`
	Error   string `json:"error,omitempty"`
}
