package task

type PageRetryTask struct {
	Catalogue    string `json:"catalogue"`
	CategoryPath string `json:"category_path"`
	ListingURL   string `json:"listing_url"`
	PageNumber   int    `json:"page_number"` // Failed page number
	RetryCount   int    `json:"retry_count"`
	Error        string `json:"error"` // Error message from the original failure
}

func (t *PageRetryTask) TaskType() string {
	return TypePageRetry
}

func (t *PageRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
