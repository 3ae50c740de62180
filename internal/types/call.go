package types

// CallType is the category a call record is classified into
type CallType string

const (
	CallTypeInbound  CallType = "CDS_IN"  // Front Office call handled by an authorized agent
	CallTypeOutbound CallType = "CDS_OUT" // outbound call placed from an agent extension
	CallTypeAbsys    CallType = "ABSYS"   // Front Office call with no authorized agent
	CallTypeOther    CallType = "OTHER"
)

// Queue identifies the routing queue of a call
type Queue string

const (
	QueueNone        Queue = ""
	QueueFrontOffice Queue = "Front Office"
)

// Counted reports whether the call type contributes to volumes and KPIs
func (c CallType) Counted() bool {
	return c == CallTypeInbound || c == CallTypeOutbound || c == CallTypeAbsys
}
