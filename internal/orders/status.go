package orders

import "github.com/ariefcatur/go-custom-orders/internal/apperr"

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPendingDesign  Status = "pending_design"
	StatusDesignApproved Status = "design_approved"
	StatusProduction     Status = "production"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// validNext is the whole state machine. The design sub-flow feeds into processing.
var validNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusProcessing: true, StatusPendingDesign: true, StatusCancelled: true},
	StatusPendingDesign:  {StatusDesignApproved: true, StatusCancelled: true},
	StatusDesignApproved: {StatusProduction: true, StatusCancelled: true},
	StatusProduction:     {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing:     {StatusShipped: true, StatusCancelled: true},
	StatusShipped:        {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// ParseStatus accepts only the closed set of statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", apperr.InvalidStatus("unknown order status %q", s)
	}
	return st, nil
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// initialStatus resolves the status a new order starts in.
func initialStatus(s Status) (Status, error) {
	switch s {
	case "":
		return StatusPendingPayment, nil
	case StatusPendingPayment, StatusPendingDesign:
		return s, nil
	}
	return "", apperr.InvalidStatus("order cannot start in status %q", s)
}
