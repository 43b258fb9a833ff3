package domain

import "time"

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`     // user or admin ID
	LastUpdatedAt time.Time `json:"lastUpdatedAt"` // time of the last committed mutation
	LastUpdatedBy string    `json:"lastUpdatedBy"`
}
