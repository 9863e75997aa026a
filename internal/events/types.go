package events

// Event type constants for kelindar/event.
const (
	TypePipelineStateChanged uint32 = iota + 1
	TypeStageToggled
	TypeObjectsTracked
	TypeConfigPersisted
	TypeSinkFailed
	TypeEncoderMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PipelineStateChangedEvent is published on every orchestrator transition.
type PipelineStateChangedEvent struct {
	From      string `json:"from" example:"building" doc:"Previous state"`
	To        string `json:"to" example:"running" doc:"New state"`
	Stages    int    `json:"stages" example:"5" doc:"Number of stages in the chain"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for PipelineStateChangedEvent.
func (e PipelineStateChangedEvent) Type() uint32 { return TypePipelineStateChanged }

// StageToggledEvent is published when an operator toggle was accepted by a stage.
type StageToggledEvent struct {
	Stage     string `json:"stage" example:"thresholder" doc:"Stage name"`
	Flag      string `json:"flag" example:"G" doc:"Toggle key"`
	Persist   bool   `json:"persist" doc:"Whether the change should survive the run"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Toggle timestamp"`
}

// Type returns the event type identifier for StageToggledEvent.
func (e StageToggledEvent) Type() uint32 { return TypeStageToggled }

// TrackedObject is one recognised fiducial or finger in normalised coordinates.
type TrackedObject struct {
	ID     int     `json:"id" example:"12" doc:"Fiducial symbol ID, -1 for fingers"`
	Finger bool    `json:"finger" doc:"True when the object is a finger blob"`
	X      float64 `json:"x" example:"0.42" doc:"Horizontal position in [0,1]"`
	Y      float64 `json:"y" example:"0.77" doc:"Vertical position in [0,1]"`
	Angle  float64 `json:"angle" example:"1.57" doc:"Rotation in radians"`
}

// ObjectsTrackedEvent carries one frame worth of tracked objects.
type ObjectsTrackedEvent struct {
	Frame   uint64          `json:"frame" example:"1024" doc:"Frame sequence number"`
	Objects []TrackedObject `json:"objects" doc:"Objects present in the frame"`
}

// Type returns the event type identifier for ObjectsTrackedEvent.
func (e ObjectsTrackedEvent) Type() uint32 { return TypeObjectsTracked }

// ConfigPersistedEvent is published after the post-run save.
type ConfigPersistedEvent struct {
	Path      string `json:"path" example:"./tracknode.toml" doc:"Document path"`
	Error     string `json:"error,omitempty" doc:"Save error, empty on success"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Save timestamp"`
}

// Type returns the event type identifier for ConfigPersistedEvent.
func (e ConfigPersistedEvent) Type() uint32 { return TypeConfigPersisted }

// SinkFailedEvent is published when the streaming sink could not encode a frame.
type SinkFailedEvent struct {
	Stage     string `json:"stage" example:"sink" doc:"Stage name"`
	Error     string `json:"error" doc:"Encoder error"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Failure timestamp"`
}

// Type returns the event type identifier for SinkFailedEvent.
func (e SinkFailedEvent) Type() uint32 { return TypeSinkFailed }

// EncoderMetricsEvent is the periodic snapshot of the encoder progress report.
type EncoderMetricsEvent struct {
	Session         string `json:"session" example:"sink" doc:"Encoder session identifier"`
	FPS             string `json:"fps" example:"29.97" doc:"Encoding rate"`
	DroppedFrames   string `json:"dropped_frames" example:"0" doc:"Frames dropped by the encoder"`
	DuplicateFrames string `json:"duplicate_frames" example:"0" doc:"Frames duplicated by the encoder"`
	Speed           string `json:"speed" example:"1.00" doc:"Encoding speed relative to real time"`
}

// Type returns the event type identifier for EncoderMetricsEvent.
func (e EncoderMetricsEvent) Type() uint32 { return TypeEncoderMetrics }
