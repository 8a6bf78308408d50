package dto

type RegisterRequest struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateAdvertisementRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateAdvertisementRequest is a PATCH body; nil fields stay as they
// are. The creator cannot be changed through the API at all.
type UpdateAdvertisementRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"` // OPEN / CLOSED
}
