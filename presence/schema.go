package presence

import "github.com/hashicorp/go-memdb"

const (
	tblCalls         = "calls"
	tblNotifications = "notifications"
)

const (
	idxUserID  = "id"
	idxID      = "id"
	idxCaller  = "caller"
	idxOutcome = "outcome"
)

// schema is the schema of the presence database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblCalls: {
			Name: tblCalls,
			Indexes: map[string]*memdb.IndexSchema{
				idxUserID: {
					Name:    idxUserID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "UserID"},
				},
			},
		},
		tblNotifications: {
			Name: tblNotifications,
			Indexes: map[string]*memdb.IndexSchema{
				idxID: {
					Name:    idxID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				idxCaller: {
					Name:    idxCaller,
					Indexer: &memdb.StringFieldIndex{Field: "CallerID"},
				},
				idxOutcome: {
					Name:    idxOutcome,
					Indexer: &memdb.StringFieldIndex{Field: "Outcome"},
				},
			},
		},
	},
}
