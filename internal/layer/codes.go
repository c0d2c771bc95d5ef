package layer

// Response status words. The first word of every response carries one
// of these strings.
const (
	StatusOK                     = "OK"
	StatusInvalidPasswordHash    = "InvalidPasswordHash"
	StatusInvalidPassword        = "InvalidPassword"
	StatusInvalidUsername        = "InvalidUsername"
	StatusLogInRequired          = "LogInRequired"
	StatusInsufficientPrivileges = "InsufficientPrivileges"
	StatusInvalidArguments       = "InvalidArguments"
	StatusUnknownCommand         = "UnknownCommand"
	StatusAccountAlreadyExists   = "AccountAlreadyExists"
	StatusAccountDoesNotExists   = "AccountDoesNotExists"
	StatusProconUidConflict      = "ProconUidConflict"
)
