package internal

// QueryType defines the possible read-only lookups for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve an entry by key.
	QueryTHas                        // Check whether a key exists.
	QueryTGetDBInfo                  // Retrieve metadata about the underlying database.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTHas:
		return "Has"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests sent via SyncRead
type Query struct {
	Type QueryType // The type of query to perform.
	Key  string    // The key for the query (empty for some queries).
}

// QueryResult is the result of a QueryTGet operation.
// All other query results are primitive types or predefined structs
// (bool, db.DatabaseInfo).
type QueryResult struct {
	Ok    bool
	Value []byte
}
