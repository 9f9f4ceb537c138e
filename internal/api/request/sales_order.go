package request

// SalesOrder asks for a committed or draft sales order ending at End.
type SalesOrder struct {
	Tenant string `json:"tenant" validate:"required"`
	End    string `json:"end"`
}

type SalesHistoric struct {
	Tenant string `json:"tenant" validate:"required"`
	Date   string `json:"date" validate:"required"`
}

type SalesRange struct {
	Tenant string `json:"tenant" validate:"required"`
	Start  string `json:"start" validate:"required"`
	End    string `json:"end"`
}
