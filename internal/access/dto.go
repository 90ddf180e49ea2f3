// AngelaMos | 2026
// dto.go

package access

import (
	"time"
)

// GrantRequest sets or replaces a grant. A null expires_at grants unlimited
// access.
type GrantRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

type CheckResponse struct {
	HasAccess bool   `json:"has_access"`
	Expired   bool   `json:"expired"`
	Status    Status `json:"status"`
}

func ToCheckResponse(s Status) CheckResponse {
	return CheckResponse{
		HasAccess: s == StatusGranted,
		Expired:   s == StatusExpired,
		Status:    s,
	}
}
