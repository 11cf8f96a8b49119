package transfer

import "time"

// LemonSqueezyEvent is the webhook envelope Lemon Squeezy posts for
// subscription lifecycle events.
type LemonSqueezyEvent struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID string `json:"user_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			StoreID     int       `json:"store_id"`
			CustomerID  int       `json:"customer_id"`
			ProductID   int       `json:"product_id"`
			VariantID   int       `json:"variant_id"`
			VariantName string    `json:"variant_name"`
			UserEmail   string    `json:"user_email"`
			UserName    string    `json:"user_name"`
			Status      string    `json:"status"`
			RenewsAt    time.Time `json:"renews_at"`
			EndsAt      time.Time `json:"ends_at"`
			CreatedAt   time.Time `json:"created_at"`
			UpdatedAt   time.Time `json:"updated_at"`
		} `json:"attributes"`
	} `json:"data"`
}
