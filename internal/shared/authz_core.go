package shared

// Catalog permissions.
const (
	PermCreateBooks = "create-books"
	PermUpdateBooks = "update-books"
	PermDeleteBooks = "delete-books"
)

// CoreScopes lists the permissions seeded on a fresh installation.
func CoreScopes() []string {
	return []string{
		PermCreateBooks,
		PermUpdateBooks,
		PermDeleteBooks,
	}
}
