package orders

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

var validNext = map[Status]map[Status]bool{
	StatusPending: {StatusPaid: true},
	StatusPaid:    {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
