package trace

// span attribute keys
const (
	ToolName         = "cricchat.tool.name"
	UpstreamOp       = "cricchat.upstream.op"
	UpstreamCached   = "cricchat.upstream.cached"
	ImageCandidates  = "cricchat.image.candidates"
	ImageFinalState  = "cricchat.image.state"
	WidgetIdentifier = "cricchat.widget"
)
