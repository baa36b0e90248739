package main

import (
	"time"

	"autilance/auth"
	"autilance/dispute"
)

type partyResponse struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type contractResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	AmountCents int64         `json:"amountCents"`
	Client      partyResponse `json:"client"`
	Freelancer  partyResponse `json:"freelancer"`
}

type resolutionResponse struct {
	ID         string  `json:"id"`
	Outcome    string  `json:"outcome"`
	Notes      string  `json:"notes"`
	ProposedBy *string `json:"proposedBy"`
	CreatedAt  string  `json:"createdAt"`
}

type disputeDetailResponse struct {
	ID          string               `json:"id"`
	Status      string               `json:"status"`
	Reason      string               `json:"reason"`
	Contract    contractResponse     `json:"contract"`
	FiledBy     partyResponse        `json:"filedBy"`
	Resolutions []resolutionResponse `json:"resolutions"`
	CreatedAt   string               `json:"createdAt"`
	UpdatedAt   string               `json:"updatedAt"`
}

type disputeResponse struct {
	ID           string `json:"id"`
	ContractID   string `json:"contractId"`
	FiledBy      string `json:"filedBy"`
	Reason       string `json:"reason"`
	Status       string `json:"status"`
	ClientID     string `json:"clientId"`
	FreelancerID string `json:"freelancerId"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func toPartyResponse(p dispute.Party) partyResponse {
	return partyResponse{ID: p.ID, FullName: p.FullName, Email: p.Email}
}

func toDisputeDetailResponse(d dispute.Detail) disputeDetailResponse {
	resolutions := make([]resolutionResponse, 0, len(d.Resolutions))
	for _, res := range d.Resolutions {
		resolutions = append(resolutions, resolutionResponse{
			ID:         res.ID,
			Outcome:    res.Outcome,
			Notes:      res.Notes,
			ProposedBy: res.ProposedBy,
			CreatedAt:  formatTime(res.CreatedAt),
		})
	}
	return disputeDetailResponse{
		ID:     d.ID,
		Status: string(d.Status),
		Reason: d.Reason,
		Contract: contractResponse{
			ID:          d.Contract.ID,
			Title:       d.Contract.Title,
			AmountCents: d.Contract.AmountCents,
			Client:      toPartyResponse(d.Contract.Client),
			Freelancer:  toPartyResponse(d.Contract.Freelancer),
		},
		FiledBy:     toPartyResponse(d.FiledBy),
		Resolutions: resolutions,
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
	}
}

func toDisputeResponse(rec dispute.Record) disputeResponse {
	return disputeResponse{
		ID:           rec.ID,
		ContractID:   rec.ContractID,
		FiledBy:      rec.FiledBy,
		Reason:       rec.Reason,
		Status:       string(rec.Status),
		ClientID:     rec.ClientID,
		FreelancerID: rec.FreelancerID,
		CreatedAt:    formatTime(rec.CreatedAt),
		UpdatedAt:    formatTime(rec.UpdatedAt),
	}
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     string(u.Role),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
