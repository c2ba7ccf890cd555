package moonlapse

import "github.com/opd-ai/moonlapse/userstore"

// UserStore is the account collaborator consulted by the Entry state.
// *userstore.Store satisfies it.
type UserStore interface {
	FindByUsername(username string) (*userstore.User, error)
	VerifyCredentials(user *userstore.User, password string) bool
	Create(username, password string) (*userstore.User, error)
	RecordLogin(user *userstore.User) error
}
