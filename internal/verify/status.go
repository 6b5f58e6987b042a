package verify

// Status is the internal order lifecycle vocabulary.
type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusPartialFilled Status = "partial_filled"
	StatusFilled        Status = "filled"
	StatusCancelled     Status = "cancelled"
	StatusFailed        Status = "failed"
	StatusUnknown       Status = "unknown"
)

// exchangeStatusMap is the fixed lookup from the exchange's vocabulary onto
// the internal taxonomy. "Inactive" is the exchange's word for an order it
// silently dropped, so it collapses to cancelled.
var exchangeStatusMap = map[string]Status{
	"PendingSubmit": StatusSubmitted,
	"PreSubmitted":  StatusSubmitted,
	"Submitted":     StatusSubmitted,
	"PartFilled":    StatusPartialFilled,
	"Filled":        StatusFilled,
	"Cancelled":     StatusCancelled,
	"Inactive":      StatusCancelled,
	"Failed":        StatusFailed,
}

// MapExchangeStatus translates one raw exchange status string. Unrecognized
// strings map to StatusUnknown, which is never terminal.
func MapExchangeStatus(raw string) Status {
	if s, ok := exchangeStatusMap[raw]; ok {
		return s
	}
	return StatusUnknown
}

// IsTerminal reports whether polling may stop at this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
