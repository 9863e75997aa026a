package pipeline

// State is the orchestrator lifecycle position.
type State string

// Orchestrator states in the order a run passes through them.
const (
	StateUnstarted State = "unstarted"
	StateBuilding  State = "building"
	StateRunning   State = "running"
	StateStopping  State = "stopping"
	StateHarvested State = "harvested"
	StateTornDown  State = "torn_down"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateTornDown || s == StateFailed
}
