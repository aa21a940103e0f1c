package domain

// IssuanceEvent is emitted on every successful mint. It is the only audit
// signal exposed besides ownership and stream state.
type IssuanceEvent struct {
	TokenID   TokenID
	Receiver  Address
	FlowRate  int64
	Timestamp int64 // Unix timestamp in milliseconds
}

// Stream operation kinds as reported to the audit archive.
const (
	StreamOpCreate = "create"
	StreamOpUpdate = "update"
	StreamOpDelete = "delete"
)

// StreamOp records a single mutation issued to (or observed from) the
// stream host.
type StreamOp struct {
	Kind      string // "create" | "update" | "delete"
	Asset     string
	From      Address
	To        Address
	Rate      int64 // resulting stream rate; 0 for delete
	Timestamp int64 // Unix timestamp in milliseconds
}
