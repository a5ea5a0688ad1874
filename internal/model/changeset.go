package model

// Changeset is a group of records that must be persisted together or not at
// all.  Requests in a changeset are updates to requests that were active
// when they were loaded; a store rejects the whole changeset with a
// conflict if any of them has left active in the meantime.  Responses are
// inserted when new and updated otherwise.
type Changeset struct {
	Requests  []HiringRequest
	Responses []HiringResponse
}

// Empty reports whether there is nothing to persist.
func (c Changeset) Empty() bool { return len(c.Requests) == 0 && len(c.Responses) == 0 }
