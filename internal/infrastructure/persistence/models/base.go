package models

import (
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel holds the identity and timestamp columns every table has.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AggregateModel adds the optimistic-locking version column.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// TenantAggregateModel is the column set of a tenant-scoped aggregate:
// batches, payments and supplier balances.
type TenantAggregateModel struct {
	AggregateModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index"`
}

func tenantModelFrom(root shared.TenantAggregateRoot) TenantAggregateModel {
	return TenantAggregateModel{
		AggregateModel: AggregateModel{
			BaseModel: BaseModel{ID: root.ID, CreatedAt: root.CreatedAt, UpdatedAt: root.UpdatedAt},
			Version:   root.Version,
		},
		TenantID:  root.TenantID,
		CreatedBy: root.CreatedBy,
	}
}

// tenantRoot rebuilds the domain root. Pending events are not persisted, so
// a loaded aggregate starts with none.
func (m *TenantAggregateModel) tenantRoot() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
			Version:    m.Version,
		},
		TenantID:  m.TenantID,
		CreatedBy: m.CreatedBy,
	}
}
