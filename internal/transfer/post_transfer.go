package transfer

type PostCreation struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	PersonaID int64  `json:"persona_id"`
}

type ScheduleCreation struct {
	PostID          int64  `json:"post_id"`
	VariantID       int64  `json:"variant_id"`
	Platform        string `json:"platform"`
	SocialAccountID int64  `json:"social_account_id"`
	ScheduledFor    string `json:"scheduled_for"` // 2006-01-02T15:04 local form input
	MaxRetries      int    `json:"max_retries"`
}

type VariantGeneration struct {
	PostID    int64 `json:"post_id"`
	PersonaID int64 `json:"persona_id"`
	Count     int   `json:"count"`
}
