package comanda

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusClosed    Status = "CLOSED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusOpen:      {StatusClosed: true, StatusPaid: true, StatusCancelled: true},
	StatusClosed:    {StatusPaid: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal statuses reject every mutation, including further transitions.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
