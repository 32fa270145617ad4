package dto

import "time"

type ListCustomersQuery struct {
	Page  int `form:"page,default=1" binding:"gte=0"`
	Limit int `form:"limit,default=10" binding:"gte=0"`
}

type UpdatePricingRequest struct {
	Professional *int64 `json:"professional" binding:"required,gte=0"`
	Enterprise   *int64 `json:"enterprise" binding:"required,gte=0"`
}

type RealtimeTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
