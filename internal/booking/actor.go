package booking

// Actor is the authenticated caller as vouched for by the identity provider.
type Actor struct {
	UserID   uint
	Username string
	Admin    bool
}

func requireAdmin(a Actor) error {
	if !a.Admin {
		return ErrForbidden
	}
	return nil
}
