package model

// Client is the tenant record owned by the client directory. The booking core
// only reads it.
type Client struct {
	ID       string `json:"id,omitempty" bson:"_id,omitempty"`
	Name     string `json:"name" bson:"name"`
	Phone    string `json:"phone,omitempty" bson:"phone,omitempty"`
	IsActive bool   `json:"isActive" bson:"is_active"`
}
