package dto

import "github.com/lotes/backend/internal/domain/lote"

// OwnerResponse is the public ownership record of a lote
type OwnerResponse struct {
	ActorID              string `json:"actor_id"`
	DisplayName          string `json:"display_name"`
	AcquisitionTimestamp int64  `json:"acquisition_timestamp"`
}

// AcquireResponse is returned by a successful acquisition
type AcquireResponse struct {
	Owner OwnerResponse `json:"owner"`
}

// LoteResponse represents a lote in API responses
type LoteResponse struct {
	ID    string         `json:"id"`
	Price int64          `json:"price"`
	Owner *OwnerResponse `json:"owner"`
}

// PutLoteRequest creates or reprices a lote
type PutLoteRequest struct {
	Price *int64 `json:"price" binding:"required,gte=0"`
}

// ToOwnerResponse converts a domain owner record
func ToOwnerResponse(o lote.Owner) OwnerResponse {
	return OwnerResponse{
		ActorID:              o.ActorID,
		DisplayName:          o.DisplayName,
		AcquisitionTimestamp: o.AcquiredAt,
	}
}

// ToLoteResponse converts a domain lote
func ToLoteResponse(l *lote.Lote) LoteResponse {
	resp := LoteResponse{ID: l.ID, Price: l.Price}
	if l.Owner != nil {
		owner := ToOwnerResponse(*l.Owner)
		resp.Owner = &owner
	}
	return resp
}
