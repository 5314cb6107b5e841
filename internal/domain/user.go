package domain

// LocalUser is the participant running this client.
type LocalUser struct {
	ID       string
	Name     string
	Username string
	ImageRef string
}

func (u LocalUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
