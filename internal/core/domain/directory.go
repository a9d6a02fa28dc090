package domain

// Department and User are reference data owned outside the ledger.
type Department struct {
	ID   int64
	Name string
}

type User struct {
	ID           int64
	Username     string
	Email        string
	DepartmentID int64
	FullName     string
	Role         string
}
