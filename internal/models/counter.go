package models

// Counter holds an atomically incremented sequence, e.g. "invoice:26".
type Counter struct {
	ID  string `bson:"_id" json:"id"`
	Seq int    `bson:"seq" json:"seq"`
}
