package models

type EntityKind string

const (
	EntityKindOrganisation EntityKind = "org_organisation"
	EntityKindSite         EntityKind = "org_site"
	EntityKindPerson       EntityKind = "pr_person"
	EntityKindRealm        EntityKind = "pr_realm"
	EntityKindGroup        EntityKind = "pr_group"
	EntityKindForum        EntityKind = "pr_forum"
)

// RoleParent is the affiliation role linking a realm to the entities that own it.
const (
	RoleParent         = "Parent"
	RoleTypeOUMember   = 1
	RoleTypeOUAncestor = 9
)

type ReqWorkflowStatus int

const (
	ReqStatusDraft     ReqWorkflowStatus = 1
	ReqStatusSubmitted ReqWorkflowStatus = 2
	ReqStatusApproved  ReqWorkflowStatus = 3
	ReqStatusCompleted ReqWorkflowStatus = 4
	ReqStatusCancelled ReqWorkflowStatus = 5
)

func (s ReqWorkflowStatus) String() string {
	switch s {
	case ReqStatusDraft:
		return "draft"
	case ReqStatusSubmitted:
		return "submitted"
	case ReqStatusApproved:
		return "approved"
	case ReqStatusCompleted:
		return "completed"
	case ReqStatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ReqProgress is the derived transit / fulfil status of a requisition.
type ReqProgress int

const (
	ReqProgressNone     ReqProgress = 0
	ReqProgressPartial  ReqProgress = 1
	ReqProgressComplete ReqProgress = 2
)

func (p ReqProgress) String() string {
	switch p {
	case ReqProgressPartial:
		return "partial"
	case ReqProgressComplete:
		return "complete"
	}
	return "none"
}

type ShipmentStatus int

const (
	ShipStatusInProcess ShipmentStatus = 0
	ShipStatusReceived  ShipmentStatus = 1
	ShipStatusSent      ShipmentStatus = 2
	ShipStatusCancel    ShipmentStatus = 3
)

type TrackStatus int

const (
	TrackStatusPreparing TrackStatus = 1
	TrackStatusTransit   TrackStatus = 2
	TrackStatusArrived   TrackStatus = 4
)

type AdjStatus int

const (
	AdjStatusOpen   AdjStatus = 0
	AdjStatusClosed AdjStatus = 1
)

type StockMovementKind string

const (
	StockMovementSend   StockMovementKind = "send"
	StockMovementRecv   StockMovementKind = "recv"
	StockMovementAdjust StockMovementKind = "adj"
	StockMovementKit    StockMovementKind = "kit"
)

// Notification types.
const (
	NotificationReqApprove = "req_approve"
	NotificationReqFulfil  = "req_fulfil"
	NotificationMinStock   = "min_stock"
	NotificationCapacity   = "capacity"
)

const (
	OutboxStatusPending    = "PENDING"
	OutboxStatusProcessing = "PROCESSING"
	OutboxStatusSent       = "SENT"
	OutboxStatusFailed     = "FAILED"
	OutboxStatusDead       = "DEAD"
)

// Organisation types with special realm rules.
const (
	OrganisationTypeRedCross       = "Red Cross / Red Crescent"
	OrganisationTypeTrainingCentre = "Training Center"
)
