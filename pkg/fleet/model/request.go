package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestKind is the closed tagged variant of a privileged-operation
// request a non-superuser User can submit instead of performing the
// operation directly (see SPEC_FULL.md's Supplemented Features, grounded on
// original_source/src-tauri/src/request.rs).
type RequestKind string

const (
	RequestDownload RequestKind = "download"
	RequestLoad     RequestKind = "load"
	RequestUnload   RequestKind = "unload"
)

// RequestStatus tracks a Request through the approval workflow.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// Request is a single privileged-operation request awaiting approval.
type Request struct {
	ID          uuid.UUID
	Kind        RequestKind
	Status      RequestStatus
	RequestedBy uuid.UUID
	ModelUUID   uuid.UUID
	Detail      string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	ResolvedBy  *uuid.UUID
}
