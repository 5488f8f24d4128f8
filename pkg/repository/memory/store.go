package memory

// Store bundles one repository per port.
type Store struct {
	Users    *UsersRepository
	History  *PasswordHistoryRepository
	OTPs     *OTPRepository
	Sessions *SessionsRepository
	Roles    *RolesRepository
}

// New creates an empty store.
func New() *Store {
	return &Store{
		Users:    NewUsersRepository(),
		History:  NewPasswordHistoryRepository(),
		OTPs:     NewOTPRepository(),
		Sessions: NewSessionsRepository(),
		Roles:    NewRolesRepository(),
	}
}
