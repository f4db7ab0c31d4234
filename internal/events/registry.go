package events

import "fmt"

// Event names.
const (
	RunStarted       = "run.started"
	RunFinished      = "run.finished"
	RunRestored      = "run.restored"
	RouteRequested   = "route.requested"
	RoutePlanned     = "route.planned"
	RouteFailed      = "route.failed"
	RobotStep        = "robot.step"
	WaypointCaptured = "waypoint.captured"
	StateChanged     = "state.changed"
	OperatorDispatch = "operator.dispatch"
	CommandReceived  = "command.received"
	CommandRejected  = "command.rejected"
	SystemStartup    = "system.startup"
	SystemShutdown   = "system.shutdown"
	SystemError      = "system.error"
)

var allowedEvents = map[string]struct{}{
	// run
	RunStarted:  {},
	RunFinished: {},
	RunRestored: {},

	// route
	RouteRequested: {},
	RoutePlanned:   {},
	RouteFailed:    {},

	// robot
	RobotStep:        {},
	WaypointCaptured: {},
	StateChanged:     {},

	// operator
	OperatorDispatch: {},
	CommandReceived:  {},
	CommandRejected:  {},

	// system
	SystemStartup:  {},
	SystemShutdown: {},
	SystemError:    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
