package models

// SchemaVersion is the singleton document tracking applied migrations.
// The version only ever moves forward.
type SchemaVersion struct {
	Version int `bson:"version"`
}
