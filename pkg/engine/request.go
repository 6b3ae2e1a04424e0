package engine

// Action is one of the fixed dispatch verbs.
type Action string

const (
	ActionCreate      Action = "create"
	ActionRead        Action = "read"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionOperation   Action = "operation"
	ActionTransaction Action = "transaction"
	ActionSchema      Action = "schema"
)

// Request is the inbound envelope handed over by the transport layer.
// Parameter is free-form: an object for CRUD actions, an array of
// sub-operations for transactions. For the operation action, Model names the
// registered operation.
type Request struct {
	Action     Action                 `json:"action"`
	Model      string                 `json:"model"`
	Parameter  interface{}            `json:"parameter"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Response is the uniform outbound envelope. At most one of Data and Errors
// is set; a schema query for a capability the permission mask disables yields
// both nil ("schema absent", not a failure).
type Response struct {
	Data   interface{} `json:"data"`
	Errors interface{} `json:"errors"`
}
