package domain

import "time"

type ActionState string

const (
	StateIdle             ActionState = "idle"
	StateAuthenticating   ActionState = "authenticating"
	StateProcessing       ActionState = "processing"
	StateSuccess          ActionState = "success"
	StateAuthFailed       ActionState = "auth_failed"
	StateProcessingFailed ActionState = "processing_failed"
	StateConfigError      ActionState = "config_error"
	StateRejected         ActionState = "rejected"
)

func (s ActionState) Terminal() bool {
	switch s {
	case StateSuccess, StateAuthFailed, StateProcessingFailed, StateConfigError, StateRejected:
		return true
	default:
		return false
	}
}

// ActionOutcome is the result of one user upload action.
// Result is set only when State is StateSuccess.
type ActionOutcome struct {
	RunID       string          `json:"run_id"`
	State       ActionState     `json:"state"`
	Result      *DocumentResult `json:"result,omitempty"`
	PDF         PDFInfo         `json:"pdf"`
	TokenReused bool            `json:"token_reused"`
	Err         error           `json:"-"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

func (o *ActionOutcome) Duration() time.Duration {
	if o == nil || o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// ProcessingRun is the persisted summary of an upload action.
type ProcessingRun struct {
	ID             string      `json:"id"`
	SessionID      string      `json:"-"`
	Filename       string      `json:"filename"`
	SizeBytes      int64       `json:"size_bytes"`
	Pages          int         `json:"pages"`
	State          ActionState `json:"state"`
	DocumentNumber string      `json:"document_number,omitempty"`
	DocumentType   string      `json:"document_type,omitempty"`
	SupplierTaxID  string      `json:"supplier_tax_id,omitempty"`
	CustomerTaxID  string      `json:"customer_tax_id,omitempty"`
	LineItems      int         `json:"line_items"`
	Error          string      `json:"error,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	CompletedAt    time.Time   `json:"completed_at"`
}

// DocumentProcessed is published after a successful action.
type DocumentProcessed struct {
	RunID       string         `json:"run_id"`
	Filename    string         `json:"filename"`
	ProcessedAt time.Time      `json:"processed_at"`
	Result      DocumentResult `json:"result"`
}
