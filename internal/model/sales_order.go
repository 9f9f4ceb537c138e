package model

import "time"

type SalesOrder struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Start     time.Time `json:"start" db:"start"`
	End       time.Time `json:"end" db:"end"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
