package models

// LocalDataUpdate describes how a payload is applied to the local store.
// Callers construct the variant explicitly instead of relying on the
// shape of the payload.
type LocalDataUpdate interface {
	isLocalDataUpdate()
}

// Append adds imported entities to the existing list (upsert by ID).
type Append struct {
	Entities []Entity
}

// Replace substitutes the whole list of a type.
type Replace struct {
	Entities []Entity
}

// Delete removes a single entity by ID.
type Delete struct {
	ID int64
}

// Upsert inserts or overwrites a single entity.
type Upsert struct {
	Entity Entity
}

func (Append) isLocalDataUpdate()  {}
func (Replace) isLocalDataUpdate() {}
func (Delete) isLocalDataUpdate()  {}
func (Upsert) isLocalDataUpdate()  {}
