package model

// RequestType identifies one of the three request families
type RequestType string

const (
	RequestTypeVehicle RequestType = "VEHICLE"
	RequestTypeICT     RequestType = "ICT"
	RequestTypeStore   RequestType = "STORE"
)

// RequestTypes lists every supported request family
var RequestTypes = []RequestType{RequestTypeVehicle, RequestTypeICT, RequestTypeStore}

func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeVehicle, RequestTypeICT, RequestTypeStore:
		return true
	}
	return false
}

func (t RequestType) HasItems() bool {
	return t == RequestTypeICT || t == RequestTypeStore
}

// Stage is the workflow checkpoint a request currently occupies
type Stage string

const (
	StageSubmitted        Stage = "SUBMITTED"
	StageSupervisorReview Stage = "SUPERVISOR_REVIEW"
	StageDGSReview        Stage = "DGS_REVIEW"
	StageDDGSReview       Stage = "DDGS_REVIEW"
	StageADGSReview       Stage = "ADGS_REVIEW"
	StageDDICTReview      Stage = "DDICT_REVIEW"
	StageTOReview         Stage = "TO_REVIEW"
	StageSOReview         Stage = "SO_REVIEW"
	StageFulfillment      Stage = "FULFILLMENT"
	StageCompleted        Stage = "COMPLETED"
)

// ReviewStages are the stages at which an approver decides (approve/reject/send back)
var ReviewStages = []Stage{
	StageSupervisorReview,
	StageDDGSReview,
	StageADGSReview,
	StageDGSReview,
	StageDDICTReview,
	StageTOReview,
	StageSOReview,
}

func (s Stage) IsValid() bool {
	switch s {
	case StageSubmitted, StageFulfillment, StageCompleted:
		return true
	}
	return s.IsReview()
}

func (s Stage) IsReview() bool {
	for _, r := range ReviewStages {
		if r == s {
			return true
		}
	}
	return false
}

// Status is the lifecycle status paired with a Stage
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusApproved           Status = "APPROVED"
	StatusRejected           Status = "REJECTED"
	StatusCorrected          Status = "CORRECTED"
	StatusAssigned           Status = "ASSIGNED"
	StatusPartialFulfillment Status = "PARTIAL_FULFILLMENT"
	StatusFulfilled          Status = "FULFILLED"
	StatusCompleted          Status = "COMPLETED"
	StatusCancelled          Status = "CANCELLED"
)

// IsOpen reports whether a reviewer (or the requester, for cancel) may still act
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusCorrected
}

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Role is an organizational role held by a user
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleICTAdmin       Role = "ICT_ADMIN"
	RoleStoreAdmin     Role = "STORE_ADMIN"
	RoleTransportAdmin Role = "TRANSPORT_ADMIN"
	RoleDGS            Role = "DGS"
	RoleDDGS           Role = "DDGS"
	RoleADGS           Role = "ADGS"
	RoleTO             Role = "TO"
	RoleDDICT          Role = "DDICT"
	RoleSO             Role = "SO"
	RoleSupervisor     Role = "SUPERVISOR"
	RoleDriver         Role = "DRIVER"
)

// Roles lists every known role
var Roles = []Role{
	RoleAdmin, RoleICTAdmin, RoleStoreAdmin, RoleTransportAdmin,
	RoleDGS, RoleDDGS, RoleADGS, RoleTO, RoleDDICT, RoleSO,
	RoleSupervisor, RoleDriver,
}

func (r Role) IsValid() bool {
	for _, known := range Roles {
		if known == r {
			return true
		}
	}
	return false
}

// ItemCategory drives ICT routing (equipment goes through DDICT, consumables through SO)
type ItemCategory string

const (
	ItemCategoryEquipment  ItemCategory = "EQUIPMENT"
	ItemCategoryConsumable ItemCategory = "CONSUMABLE"
	ItemCategoryGeneral    ItemCategory = "GENERAL"
)

func (c ItemCategory) IsValid() bool {
	return c == ItemCategoryEquipment || c == ItemCategoryConsumable || c == ItemCategoryGeneral
}
