package watchsync

import (
	"context"
	"fmt"

	"plexadmin/internal/services"
	"plexadmin/internal/services/plex"
)

// OwnerClient is the owner's server connection. It lists share grants and
// can be re-authenticated as another user.
type OwnerClient interface {
	Account
	AccessToken(ctx context.Context, machineID string, userID int64) (string, error)
	WithToken(token string) *plex.Client
}

// ServerAccounts opens accounts on one server. The owner uses the owner
// connection; every other user gets a connection with the access token
// plex.tv issued to them for this server.
type ServerAccounts struct {
	owner      OwnerClient
	ownerTitle string
	machineID  string
	users      []plex.User
	opened     map[string]Account
}

// NewServerAccounts builds a resolver for the given owner and users.
func NewServerAccounts(owner OwnerClient, ownerTitle, machineID string, users []plex.User) *ServerAccounts {
	return &ServerAccounts{
		owner:      owner,
		ownerTitle: ownerTitle,
		machineID:  machineID,
		users:      users,
		opened:     make(map[string]Account),
	}
}

// Account returns the connection for name, opening it on first use.
func (a *ServerAccounts) Account(ctx context.Context, name string) (Account, error) {
	if name == a.ownerTitle {
		return a.owner, nil
	}
	if account, ok := a.opened[name]; ok {
		return account, nil
	}
	var userID int64
	found := false
	for _, user := range a.users {
		if user.Title == name {
			userID, found = user.ID, true
			break
		}
	}
	if !found {
		return nil, services.Wrap(services.ErrNotFound, "watchsync", "open account", fmt.Sprintf("user %q is not a friend or home user", name), nil)
	}
	token, err := a.owner.AccessToken(ctx, a.machineID, userID)
	if err != nil {
		return nil, err
	}
	account := a.owner.WithToken(token)
	a.opened[name] = account
	return account, nil
}
