package services

// Service errors
var (
	ErrVotingLocked        = &ServiceError{Message: "voting is locked for this category"}
	ErrNomineeNotFound     = &ServiceError{Message: "nominee is not part of this category"}
	ErrNoNomineeSelected   = &ServiceError{Message: "no nominee selected"}
	ErrPaymentRequired     = &ServiceError{Message: "competitions require an active purchase"}
	ErrCompetitionInactive = &ServiceError{Message: "competition is inactive"}
	ErrNotOwner            = &ServiceError{Message: "only the owner can do this"}
)

// ServiceError represents a service-level error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}
