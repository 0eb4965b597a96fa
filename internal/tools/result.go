package tools

import "encoding/json"

// ErrorKind classifies a failed Result.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindDownstream  ErrorKind = "downstream"
	KindUnknownTool ErrorKind = "unknown_tool"
)

// Result is the outcome of an operation. It marshals to
// {"success": true, ...payload} or {"success": false, "error": "..."}.
type Result struct {
	Success bool
	Error   string
	Kind    ErrorKind
	Payload map[string]interface{}
}

func ok(payload map[string]interface{}) Result {
	return Result{Success: true, Payload: payload}
}

func fail(kind ErrorKind, msg string) Result {
	return Result{Kind: kind, Error: msg}
}

// MarshalJSON flattens the payload next to the success flag.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, r.Error})
	}
	out := make(map[string]interface{}, len(r.Payload)+1)
	for k, v := range r.Payload {
		out[k] = v
	}
	out["success"] = true
	return json.Marshal(out)
}

// JSON returns the indented JSON form of r, used as tool output for language models.
func (r Result) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		b, _ = json.Marshal(fail(KindDownstream, err.Error()))
	}
	return string(b)
}
