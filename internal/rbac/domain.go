package rbac

// Permission represents an atomic capability assignable to a user.
type Permission struct {
	ID          int64
	Name        string
	Description string
}
