package admin_service

import "fmt"

var (
	ErrAdminNotFound      = fmt.Errorf("admin not found")
	ErrAdminAlreadyExists = fmt.Errorf("admin already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrDecisionNotAllowed = fmt.Errorf("application is not awaiting review")
	ErrUnknownAction      = fmt.Errorf("unknown decision action")
)

type AdminError struct {
	ErrorObj error
	Email    string
	Other    []error
}

func (a *AdminError) Error() string {
	return a.ErrorObj.Error()
}

func (a *AdminError) ErrorOut() string {
	return fmt.Sprintf("%v: %v", a.ErrorObj.Error(), a.Email)
}

func NewAdminError(err error, email string, e ...error) *AdminError {
	return &AdminError{
		ErrorObj: err,
		Email:    email,
		Other:    e,
	}
}
