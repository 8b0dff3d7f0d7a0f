package models

import "time"

// ObjectType discriminates storage listing records.
type ObjectType string

const (
	ObjectTypeFile      ObjectType = "file"
	ObjectTypeDirectory ObjectType = "directory"
)

// FileInfo is a storage listing record: one object under a remote path.
type FileInfo struct {
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	Created    time.Time  `json:"created"`
	Suffix     string     `json:"suffix"`
	ObjectType ObjectType `json:"object_type"`
}
