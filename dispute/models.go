package dispute

import "time"

// Status represents the lifecycle of a dispute record.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusEscalated  Status = "escalated"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is one of the persisted dispute statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusEscalated, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Record mirrors the disputes table joined with its contract parties.
type Record struct {
	ID           string
	ContractID   string
	FiledBy      string
	Reason       string
	Status       Status
	ClientID     string
	FreelancerID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot is the minimal projection the workflow decides on.
type Snapshot struct {
	ID           string
	Status       Status
	ClientID     string
	FreelancerID string
}

func (r Record) Snapshot() Snapshot {
	return Snapshot{
		ID:           r.ID,
		Status:       r.Status,
		ClientID:     r.ClientID,
		FreelancerID: r.FreelancerID,
	}
}

// Party is the public profile of a user referenced by a dispute.
type Party struct {
	ID       string
	FullName string
	Email    string
}

// Contract is the transaction a dispute was filed against.
type Contract struct {
	ID          string
	Title       string
	AmountCents int64
	Client      Party
	Freelancer  Party
}

// Resolution is one entry of a dispute's append-only resolution history.
type Resolution struct {
	ID         string
	Outcome    string
	Notes      string
	ProposedBy *string
	CreatedAt  time.Time
}

// Detail is the assembled read model returned to participants and moderators.
type Detail struct {
	ID          string
	Status      Status
	Reason      string
	Contract    Contract
	FiledBy     Party
	Resolutions []Resolution
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filters narrows the moderation queue.
type Filters struct {
	Status   Status
	Page     int
	PageSize int
}

type ListResult struct {
	Items []Record
	Total int
}
