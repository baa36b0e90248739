package dispute

import "autilance/auth"

// Capabilities is what a principal may do with one dispute.
type Capabilities struct {
	IsParticipant bool
	IsModerator   bool
}

func (c Capabilities) CanView() bool {
	return c.IsParticipant || c.IsModerator
}

func (c Capabilities) CanEscalate() bool {
	return c.IsModerator
}

// Classify is a pure function of the principal and the dispute's parties.
func Classify(p auth.Principal, snap Snapshot) Capabilities {
	participant := p.ID != "" && (p.ID == snap.ClientID || p.ID == snap.FreelancerID)
	return Capabilities{
		IsParticipant: participant,
		IsModerator:   p.ID != "" && p.Role.CanModerate(),
	}
}
