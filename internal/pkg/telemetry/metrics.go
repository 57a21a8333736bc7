package telemetry

// Tracer names, one per instrumented component.
const (
	TracerPlanner    = "multiride/planner"
	TracerDirections = "multiride/directions"
	TracerDispatch   = "multiride/dispatch"
)
