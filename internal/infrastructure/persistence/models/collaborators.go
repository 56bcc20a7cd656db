package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the catalog row whose consignment stock counter batches feed.
type ProductModel struct {
	AggregateModel
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Code             string          `gorm:"type:varchar(50);not null"`
	Name             string          `gorm:"type:varchar(200);not null"`
	Unit             string          `gorm:"type:varchar(20);not null;default:''"`
	ConsignmentStock decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// SupplierModel is the supplier directory row
type SupplierModel struct {
	BaseModel
	TenantID            uuid.UUID `gorm:"type:uuid;not null;index"`
	Code                string    `gorm:"type:varchar(50);not null"`
	Name                string    `gorm:"type:varchar(200);not null"`
	SupportsConsignment bool      `gorm:"not null;default:false"`
	Status              string    `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// SupplierStatusActive is the only status under which a supplier takes part in consignment
const SupplierStatusActive = "active"

// LiabilityLedgerEntryModel is one booked reduction of what is owed to a supplier.
// Entries are append-only.
type LiabilityLedgerEntryModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	SupplierID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null"`
	EntryType     string          `gorm:"type:varchar(40);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaymentMethod string          `gorm:"type:varchar(50);not null"`
	Notes         string          `gorm:"type:text"`
	RecordedBy    uuid.UUID       `gorm:"type:uuid;not null"`
	OccurredAt    time.Time       `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LiabilityLedgerEntryModel) TableName() string {
	return "liability_ledger_entries"
}

// LedgerEntryTypeConsignmentPayment marks entries booked for consignment payments
const LedgerEntryTypeConsignmentPayment = "consignment_payment"
