package models

// WhishResponse represents the standard response structure from Whish API
type WhishResponse struct {
	Status bool                   `json:"status"`
	Code   interface{}            `json:"code"`   // Can be string or null
	Dialog interface{}            `json:"dialog"` // Can be string, object, or null
	Extra  interface{}            `json:"extra"`
	Data   map[string]interface{} `json:"data"`
}
