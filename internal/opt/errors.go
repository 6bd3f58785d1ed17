package opt

import "errors"

var (
	// ErrUnknownCustomer is returned when a customer id is not part of the instance.
	ErrUnknownCustomer = errors.New("opt: unknown customer")
	// ErrUndefinedEdge is returned when no cost is registered for a directed pair.
	ErrUndefinedEdge = errors.New("opt: undefined edge")
	// ErrInsufficientCustomers is returned when a destroy step asks for more
	// removals than there are routable customers.
	ErrInsufficientCustomers = errors.New("opt: insufficient customers")
	// ErrInfeasibleInstance is returned before searching when some customer
	// cannot fit in any vehicle.
	ErrInfeasibleInstance = errors.New("opt: infeasible instance")
	// ErrInvalidInstance is returned when instance data fails validation.
	ErrInvalidInstance = errors.New("opt: invalid instance")
	// ErrInvalidSolution is returned by Instance.Validate.
	ErrInvalidSolution = errors.New("opt: invalid solution")
	// ErrInvalidConfig is returned when a search configuration fails validation.
	ErrInvalidConfig = errors.New("opt: invalid config")
	// ErrUnknownOperator is returned for an operator name with no implementation.
	ErrUnknownOperator = errors.New("opt: unknown operator")
)
