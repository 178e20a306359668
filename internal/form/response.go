package form

// ResponseState tracks where a field sits in its answer lifecycle. Any state
// may move to any other state through a patch; there is no forced linear
// progression, so a skipped field can be answered later.
type ResponseState string

const (
	StateUnanswered ResponseState = "unanswered"
	StateAnswered   ResponseState = "answered"
	StateSkipped    ResponseState = "skipped"
	StateAborted    ResponseState = "aborted"
)

// Response is the current answer for one field. Value is populated only in
// the answered state; Reason only for skipped and aborted.
type Response struct {
	State  ResponseState
	Value  Value
	Reason string
}

// Unanswered returns the zero response.
func Unanswered() Response {
	return Response{State: StateUnanswered}
}

// Answered wraps a value in an answered response.
func Answered(v Value) Response {
	return Response{State: StateAnswered, Value: v}
}

// Skipped marks a field as intentionally passed over.
func Skipped(reason string) Response {
	return Response{State: StateSkipped, Reason: reason}
}

// Aborted marks a field as abandoned.
func Aborted(reason string) Response {
	return Response{State: StateAborted, Reason: reason}
}

// Resolved reports whether the field has been dealt with in any way. Blocked
// dependencies clear once their blocking field resolves.
func (r Response) Resolved() bool {
	return r.State != "" && r.State != StateUnanswered
}

// Clone deep-copies the response.
func (r Response) Clone() Response {
	return Response{State: r.State, Value: CloneValue(r.Value), Reason: r.Reason}
}
