// Package events provides the typed event bus feeding the WebSocket stream
// and the job log.
package events

// EventType represents different event types
type EventType string

const (
	EvaluationStarted   EventType = "EVALUATION_STARTED"
	EvaluationCompleted EventType = "EVALUATION_COMPLETED"
	ForecastCompleted   EventType = "FORECAST_COMPLETED"

	BatchStarted   EventType = "BATCH_STARTED"
	BatchProgress  EventType = "BATCH_PROGRESS"
	BatchCompleted EventType = "BATCH_COMPLETED"

	CatalogImported EventType = "CATALOG_IMPORTED"
	BackupCompleted EventType = "BACKUP_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// EvaluationStartedData contains data for EvaluationStarted events
type EvaluationStartedData struct {
	CompanyID string `json:"company_id"`
}

// EventType returns the event type for EvaluationStartedData
func (d *EvaluationStartedData) EventType() EventType {
	return EvaluationStarted
}

// EvaluationCompletedData contains data for EvaluationCompleted events
type EvaluationCompletedData struct {
	CompanyID    string  `json:"company_id"`
	EvaluationID string  `json:"evaluation_id"`
	Grade        string  `json:"grade"`
	TotalScore   float64 `json:"total_score"`
	DiscountPct  float64 `json:"discount_pct"`
	Eligible     int     `json:"eligible"`
	ForecastRan  bool    `json:"forecast_ran"`
}

// EventType returns the event type for EvaluationCompletedData
func (d *EvaluationCompletedData) EventType() EventType {
	return EvaluationCompleted
}

// ForecastCompletedData contains data for ForecastCompleted events
type ForecastCompletedData struct {
	CompanyID string  `json:"company_id"`
	Horizon   int     `json:"horizon"`
	FinalE    float64 `json:"final_e"`
	FinalS    float64 `json:"final_s"`
	FinalG    float64 `json:"final_g"`
}

// EventType returns the event type for ForecastCompletedData
func (d *ForecastCompletedData) EventType() EventType {
	return ForecastCompleted
}

// BatchStartedData contains data for BatchStarted events
type BatchStartedData struct {
	RunID     string `json:"run_id"`
	Companies int    `json:"companies"`
}

// EventType returns the event type for BatchStartedData
func (d *BatchStartedData) EventType() EventType {
	return BatchStarted
}

// BatchProgressData contains data for BatchProgress events
type BatchProgressData struct {
	RunID  string `json:"run_id"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Failed int    `json:"failed"`
}

// EventType returns the event type for BatchProgressData
func (d *BatchProgressData) EventType() EventType {
	return BatchProgress
}

// BatchCompletedData contains data for BatchCompleted events
type BatchCompletedData struct {
	RunID     string  `json:"run_id"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Duration  float64 `json:"duration_seconds"`
}

// EventType returns the event type for BatchCompletedData
func (d *BatchCompletedData) EventType() EventType {
	return BatchCompleted
}

// CatalogImportedData contains data for CatalogImported events
type CatalogImportedData struct {
	Companies     int `json:"companies"`
	Suppliers     int `json:"suppliers"`
	HistoryPoints int `json:"history_points"`
	Products      int `json:"products"`
}

// EventType returns the event type for CatalogImportedData
func (d *CatalogImportedData) EventType() EventType {
	return CatalogImported
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string  `json:"key"`
	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
