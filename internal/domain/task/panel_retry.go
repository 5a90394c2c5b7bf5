package task

type PanelRetryTask struct {
	Catalogue    string `json:"catalogue"`
	CategoryPath string `json:"category_path"`
	URL          string `json:"url"`           // product page of the failed panel
	Reference    string `json:"reference"`     // reference seen on the listing, may be empty
	RetryCount   int    `json:"retry_count"`   // Number of times this panel has been retried
	Error        string `json:"error"`         // Error message from the original failure
	FailureStage string `json:"failure_stage"` // "fetch" or "save" - which stage failed
}

func (t *PanelRetryTask) TaskType() string {
	return TypePanelRetry
}

func (t *PanelRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
