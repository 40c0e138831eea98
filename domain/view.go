package domain

// ViewPolicy decides which project fields a caller may see and edit.
type ViewPolicy int

const (
	// OwnerView is for regular users looking at their own project.
	OwnerView ViewPolicy = iota
	// AdminView is for superusers looking at any project.
	AdminView
)

func (v ViewPolicy) String() string {
	switch v {
	case AdminView:
		return "admin"
	default:
		return "owner"
	}
}

// PolicyFor returns the view policy for the given caller. A nil caller
// (local administrative CLI use) gets AdminView.
func PolicyFor(caller *User) ViewPolicy {
	if caller == nil || caller.IsSuperuser {
		return AdminView
	}
	return OwnerView
}

// ListFields returns the columns shown in project listings.
func (v ViewPolicy) ListFields() []string {
	if v == AdminView {
		return []string{"domain", "user", "secret_key", "state", "created_at", "updated_at", "last_connected_at"}
	}
	return []string{"domain", "secret_key", "state", "created_at", "updated_at", "last_connected_at"}
}

// FormFields returns the editable-or-visible fields on the project form.
// existing is false while the project is being created.
func (v ViewPolicy) FormFields(existing bool) []string {
	switch {
	case existing && v == AdminView:
		return []string{"domain", "user", "secret_key"}
	case existing:
		return []string{"domain", "secret_key"}
	case v == AdminView:
		return []string{"domain", "user"}
	default:
		return []string{"domain"}
	}
}

// ReadOnlyFields returns fields that cannot be changed once the project exists.
func (v ViewPolicy) ReadOnlyFields(existing bool) []string {
	if !existing {
		return nil
	}
	if v == AdminView {
		return []string{"secret_key"}
	}
	return []string{"domain", "secret_key"}
}

// CanSee reports whether caller may see project p at all.
func CanSee(caller *User, p *Project) bool {
	if PolicyFor(caller) == AdminView {
		return true
	}
	return p.OwnerID == caller.ID
}
