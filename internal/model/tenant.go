package model

import "time"

// DawnOfTime is the watermark given to tenants that have never been collected,
// and the start of a tenant's first sales order.
var DawnOfTime = time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

type Tenant struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	LastCollected time.Time `json:"last_collected" db:"last_collected"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TenantInfo is a tenant as reported by the tenant source.
type TenantInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
