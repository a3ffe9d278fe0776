package orders

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusReady      Status = "Ready"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusReady: true, StatusCancelled: true},
	StatusReady:      {StatusCompleted: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "Unpaid"
	PaymentInvoiced PaymentStatus = "Invoiced"
	PaymentPaid     PaymentStatus = "Paid"
)
