package users

// PageSize is the fixed page length for the admin user listing.
const PageSize = 10

// ListFilter narrows the admin user listing. Zero values mean "any".
type ListFilter struct {
	Email  string
	Status string
	Role   string
	Page   int
}

// Offset converts the 1-based page number into a row offset.
func (f ListFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}
