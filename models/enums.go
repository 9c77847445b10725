package models

// UserRole controls what a user can do. Owners operate across dealerships,
// dealership admins manage one dealership, staff roles operate keys.
type UserRole string

const (
	UserRoleOwner           UserRole = "owner"
	UserRoleDealershipAdmin UserRole = "dealership_admin"
	UserRoleSales           UserRole = "sales"
	UserRoleService         UserRole = "service"
	UserRoleDelivery        UserRole = "delivery"
	UserRolePorter          UserRole = "porter"
	UserRoleLotTech         UserRole = "lot_tech"
	UserRoleUser            UserRole = "user"
)

func (r UserRole) IsAdmin() bool {
	return r == UserRoleOwner || r == UserRoleDealershipAdmin
}

func (r UserRole) IsOwner() bool {
	return r == UserRoleOwner
}

// DealershipType decides which checkout reasons apply and whether service
// bays exist. Only RV dealerships run bay service.
type DealershipType string

const (
	DealershipTypeAutomotive DealershipType = "automotive"
	DealershipTypeRV         DealershipType = "rv"
)

func (t DealershipType) IsValid() bool {
	return t == DealershipTypeAutomotive || t == DealershipTypeRV
}

type KeyCondition string

const (
	KeyConditionNew  KeyCondition = "new"
	KeyConditionUsed KeyCondition = "used"
)

func (c KeyCondition) IsValid() bool {
	return c == KeyConditionNew || c == KeyConditionUsed
}

type CheckoutReason string

const (
	CheckoutReasonTestDrive         CheckoutReason = "test_drive"
	CheckoutReasonServiceLoaner     CheckoutReason = "service_loaner"
	CheckoutReasonExtendedTestDrive CheckoutReason = "extended_test_drive"
	CheckoutReasonShowMove          CheckoutReason = "show_move"
	CheckoutReasonService           CheckoutReason = "service"
)

var validCheckoutReasons = map[CheckoutReason]bool{
	CheckoutReasonTestDrive:         true,
	CheckoutReasonServiceLoaner:     true,
	CheckoutReasonExtendedTestDrive: true,
	CheckoutReasonShowMove:          true,
	CheckoutReasonService:           true,
}

func (r CheckoutReason) IsValid() bool {
	return validCheckoutReasons[r]
}

// KeyStatus is derived, never stored: a key is checked out exactly when it
// has an open session.
type KeyStatus string

const (
	KeyStatusAvailable  KeyStatus = "available"
	KeyStatusCheckedOut KeyStatus = "checked_out"
)

type AttentionStatus string

const (
	AttentionStatusNone  AttentionStatus = "none"
	AttentionStatusNeeds AttentionStatus = "needs_attention"
	AttentionStatusFixed AttentionStatus = "fixed"
)

type PdiStatus string

const (
	PdiStatusNotYet      PdiStatus = "not_pdi_yet"
	PdiStatusInProgress  PdiStatus = "in_progress"
	PdiStatusFinished    PdiStatus = "finished"
)

var validPdiStatuses = map[PdiStatus]bool{
	PdiStatusNotYet:     true,
	PdiStatusInProgress: true,
	PdiStatusFinished:   true,
}

func (s PdiStatus) IsValid() bool {
	return validPdiStatuses[s]
}

type AlertTier string

const (
	AlertTierGreen  AlertTier = "GREEN"
	AlertTierYellow AlertTier = "YELLOW"
	AlertTierRed    AlertTier = "RED"
)

// KeyHistoryAction labels an audit entry. Every state mutation of a key
// writes exactly one entry.
type KeyHistoryAction string

const (
	KeyHistoryActionCheckout         KeyHistoryAction = "checkout"
	KeyHistoryActionReturn           KeyHistoryAction = "return"
	KeyHistoryActionBayMove          KeyHistoryAction = "bay_move"
	KeyHistoryActionAttentionFlagged KeyHistoryAction = "attention_flagged"
	KeyHistoryActionAttentionFixed   KeyHistoryAction = "attention_fixed"
	KeyHistoryActionAttentionCleared KeyHistoryAction = "attention_cleared"
)
