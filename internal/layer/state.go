package layer

// AuthState tracks where a session stands in the authentication
// handshake.
type AuthState int

const (
	// Unauthenticated is the state of every fresh connection.
	Unauthenticated AuthState = iota
	// SaltIssued means a hashed-login challenge is outstanding.
	SaltIssued
	// Authenticated sessions may issue privileged operations and
	// receive relayed events.
	Authenticated
	// LoggedOut sessions keep their connection but lost their
	// identity; logging in again is allowed.
	LoggedOut
	// Disconnected is terminal.
	Disconnected
)

func (s AuthState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case SaltIssued:
		return "salt_issued"
	case Authenticated:
		return "authenticated"
	case LoggedOut:
		return "logged_out"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
