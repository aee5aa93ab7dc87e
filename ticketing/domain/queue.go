package domain

// Queue routes tickets to a team of agents. The auto-assignment fields come
// from external configuration; the core only consumes them.
type Queue struct {
	ID            string
	TenantID      string
	Name          string
	IntegrationID string

	AutoAssignmentEnabled bool
	AssignOfflineUsers    bool
	AutoAssignUserIDs     []string

	// RRCursor is the durable round-robin position. It is never read-modified-
	// written by callers; QueueRepository.NextAssignmentIndex increments it
	// atomically in storage.
	RRCursor int64
}
