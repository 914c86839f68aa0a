package store

import "time"

// TaskStatus is the lifecycle status of a Task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusAssigned   TaskStatus = "assigned"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// KanbanColumn is the board column a Task currently occupies.
type KanbanColumn string

const (
	ColumnBacklog    KanbanColumn = "backlog"
	ColumnTodo       KanbanColumn = "todo"
	ColumnInProgress KanbanColumn = "in_progress"
	ColumnInReview   KanbanColumn = "in_review"
	ColumnDone       KanbanColumn = "done"
)

// Tri is a tri-state boolean override: explicit-true, explicit-false, or unset.
type Tri int

const (
	TriUnset Tri = iota
	TriTrue
	TriFalse
)

// Bool resolves the tri-state against a fallback used when unset.
func (t Tri) Bool(fallback bool) bool {
	switch t {
	case TriTrue:
		return true
	case TriFalse:
		return false
	default:
		return fallback
	}
}

// ToggleKey names one of the four auto-* / use-* toggles resolved through
// task -> lane default -> false.
type ToggleKey string

const (
	ToggleAutoStart ToggleKey = "autoStart"
	ToggleAutoPilot ToggleKey = "autoPilot"
	ToggleAutoClose ToggleKey = "autoClose"
	ToggleUseWorktree ToggleKey = "useWorktree"
	ToggleUseMemory ToggleKey = "useMemory"
)

// Toggles holds default boolean values for a lane, keyed by ToggleKey.
type Toggles map[ToggleKey]bool

// Lane is a persistent named workspace owning one multiplexer session.
type Lane struct {
	ID                  string
	Name                string
	ServerID            string
	WorkingDirectory    string
	SessionName         string
	CreatedAt           int64 // monotonic milliseconds
	SessionActive       bool
	AIProvider          string
	AIModel             string
	ContextInstructions string
	DefaultToggles      Toggles
	MemoryFileID        string
	MemoryPath          string
}

// StatusHistoryEntry records one status/column transition.
type StatusHistoryEntry struct {
	TaskID      string
	FromStatus  TaskStatus
	ToStatus    TaskStatus
	FromColumn  KanbanColumn
	ToColumn    KanbanColumn
	ChangedAt   int64
}

// Comment is a free-text note attached to a task.
type Comment struct {
	ID        string
	TaskID    string
	Body      string
	CreatedAt int64
}

// Task is a unit of work surfaced on the Kanban board.
type Task struct {
	ID            string
	Description   string
	Input         string
	Status        TaskStatus
	KanbanColumn  KanbanColumn
	Priority      int
	CreatedAt     int64
	StartedAt     *int64
	CompletedAt   *int64
	DoneAt        *int64
	ErrorMessage  string
	Output        string
	TargetRole    string
	AssignedAgentID string
	SwimLaneID    string
	ParentTaskID  string
	SubtaskIDs    []string
	DependsOn     []string
	Tags          []string
	Comments      []Comment
	StatusHistory []StatusHistoryEntry

	AutoStart   Tri
	AutoPilot   Tri
	AutoClose   Tri
	UseWorktree Tri
	UseMemory   Tri

	AIProvider               string
	AIModel                  string
	ServerOverride           string
	WorkingDirectoryOverride string

	TmuxServerID      string
	TmuxSessionName   string
	TmuxWindowIndex   int
	TmuxPaneIndex     int
	TmuxBindingIsSet  bool // derived convenience flag, not persisted directly
	WorktreePath      string
}

// ToggleOverride returns the tri-state override for key.
func (t *Task) ToggleOverride(key ToggleKey) Tri {
	switch key {
	case ToggleAutoStart:
		return t.AutoStart
	case ToggleAutoPilot:
		return t.AutoPilot
	case ToggleAutoClose:
		return t.AutoClose
	case ToggleUseWorktree:
		return t.UseWorktree
	case ToggleUseMemory:
		return t.UseMemory
	default:
		return TriUnset
	}
}

// HasBinding reports whether the server id and session name of the
// multiplexer binding are both set.
func (t *Task) HasBinding() bool {
	return t.TmuxServerID != "" && t.TmuxSessionName != "" // window/pane indices may legitimately be 0
}

// ClearBinding clears all four binding fields atomically.
func (t *Task) ClearBinding() {
	t.TmuxServerID = ""
	t.TmuxSessionName = ""
	t.TmuxWindowIndex = 0
	t.TmuxPaneIndex = 0
}

// AgentState is the lifecycle state of an Agent.
type AgentState string

const (
	AgentSpawning  AgentState = "spawning"
	AgentIdle      AgentState = "idle"
	AgentWorking   AgentState = "working"
	AgentError     AgentState = "error"
	AgentCompleted AgentState = "completed"
	AgentTerminated AgentState = "terminated"
)

// Persona holds optional agent personality/role metadata.
type Persona struct {
	Personality        string
	CommunicationStyle string
	Expertise          []string
	SkillLevel         string
	RiskTolerance      string
	Avatar             string
}

// Agent is an AI-CLI subprocess associated with a multiplexer location.
type Agent struct {
	ID            string
	TemplateID    string
	Name          string
	Role          string
	AIProvider    string
	State         AgentState
	ServerID      string
	SessionName   string
	WindowIndex   int
	PaneIndex     int
	TeamID        string
	CurrentTaskID string
	CreatedAt     int64
	LastActivityAt int64
	ErrorMessage  string
	Persona       *Persona
}

// Role is a user-defined role label assignable to tasks/agents.
type Role struct {
	ID   string
	Name string
}

// BackendMapping records a sync binding to an external backend (pipeline
// engine, issue tracker, etc.); the backends themselves are out of scope,
// only the mapping bookkeeping lives in the store.
type BackendMapping struct {
	ID       string
	Backend  string
	Enabled  bool
	Status   string
}

// SyncError records a failed sync attempt against a BackendMapping.
type SyncError struct {
	ID          string
	BackendID   string
	Message     string
	OccurredAt  int64
}

// Team groups agents; team bookkeeping is peripheral per spec §1 but the
// store still needs a home for it since agents reference TeamID.
type Team struct {
	ID      string
	Name    string
	Members []string
}

// Pipeline and PipelineRun are interface-only stand-ins: the DAG engine
// itself is out of scope, but the store still persists pipeline identity so
// the RPC surface's `pipeline.*` namespace has somewhere to read/write.
type Pipeline struct {
	ID   string
	Name string
}

type PipelineRun struct {
	ID         string
	PipelineID string
	Status     string
	StartedAt  int64
}

func now() int64 { return time.Now().UnixMilli() }
