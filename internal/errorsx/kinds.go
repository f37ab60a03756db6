package errorsx

// Kind is a short machine-readable error category.
type Kind string

// Error kinds shared by the server and the client.
const (
	KindUnknown Kind = "unknown"

	// KindConfiguration is fatal and reported before any session starts.
	KindConfiguration Kind = "configuration"
	// KindConnectionLost ends the current client session.
	KindConnectionLost Kind = "connection_lost"
	// KindToolDispatch is a non-fatal tool failure fed back to the model.
	KindToolDispatch Kind = "tool_dispatch"
	// KindInvalidArguments marks arguments rejected before or by a handler.
	KindInvalidArguments Kind = "invalid_arguments"
	// KindOutputParse marks model output that is not the expected JSON shape.
	KindOutputParse Kind = "output_parse"
	// KindTimeout marks a call aborted by its deadline.
	KindTimeout Kind = "timeout"
	// KindExternalCapability marks a news or model outage.
	KindExternalCapability Kind = "external_capability"
)
