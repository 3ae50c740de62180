package cdr

import (
	"strings"

	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
)

// DefaultOutboundMarker prefixes the caller field of calls placed from an agent extension
const DefaultOutboundMarker = "Ext"

// Classify assigns the call type from the queue, the resolved agent and the caller:
//
//	Front Office + agent     -> CDS_IN
//	Front Office, no agent   -> ABSYS
//	outbound marker + agent  -> CDS_OUT
//	anything else            -> OTHER
func Classify(queue types.Queue, agentName, caller, outboundMarker string) types.CallType {
	hasAgent := agentName != ""
	if queue == types.QueueFrontOffice {
		if hasAgent {
			return types.CallTypeInbound
		}
		return types.CallTypeAbsys
	}
	if hasAgent && isOutbound(caller, outboundMarker) {
		return types.CallTypeOutbound
	}
	return types.CallTypeOther
}

func isOutbound(caller, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(caller), marker)
}

// DetectQueue returns Front Office when any field equals it, ignoring case
// and surrounding spaces. The queue position varies between call legs.
func DetectQueue(fields []string) types.Queue {
	for _, f := range fields {
		if strings.EqualFold(strings.TrimSpace(f), string(types.QueueFrontOffice)) {
			return types.QueueFrontOffice
		}
	}
	return types.QueueNone
}
