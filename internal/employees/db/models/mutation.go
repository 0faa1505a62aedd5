// Package models contains the journal models, configured to work using
// GORM as the ORM.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MutationKind names the write operation a journal entry records.
type MutationKind string

const (
	KindCreate     MutationKind = "create"
	KindUpdate     MutationKind = "update"
	KindDelete     MutationKind = "delete"
	KindDeleteMany MutationKind = "delete_many"
)

// MutationRecord is one attempted write against the remote API. Employee
// records themselves are never stored here.
type MutationRecord struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Kind         MutationKind `gorm:"size:16;index" json:"kind"`
	EmployeeIDs  []int64      `gorm:"serializer:json" json:"employeeIds"`
	EmployeeName string       `gorm:"size:255" json:"employeeName,omitempty"`
	Succeeded    bool         `json:"succeeded"`
	Error        string       `gorm:"size:2000" json:"error,omitempty"`
	CreatedAt    time.Time    `gorm:"index" json:"createdAt"`
}
