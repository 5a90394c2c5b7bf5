package task

import "encoding/json"

type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
}

const (
	TypeListingPage = "ListingPageTask"
	TypePageRetry   = "PageRetryTask"
	TypePanelRetry  = "PanelRetryTask"
)

// Types lists every task type that owns a stream.
var Types = []string{TypeListingPage, TypePageRetry, TypePanelRetry}

// DefaultTaskValue provides a common implementation for TaskValue
func DefaultTaskValue(task interface{}) ([]byte, error) {
	return json.Marshal(task)
}

func UnmarshalTask[T Task](task []byte) (T, error) {
	var t T
	err := json.Unmarshal(task, &t)
	return t, err
}
