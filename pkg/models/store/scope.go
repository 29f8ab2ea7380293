package store

// Connection links a customer to one cloud tenant and carries the
// reference used to resolve its credentials. Rows are written by the
// customer management API, read-only here.
type Connection struct {
	ID             string
	CustomerID     string
	Name           string
	CredentialsRef string
}

type Subscription struct {
	ID           string
	ConnectionID string
	Name         string
	TierID       string
}
