// Package models holds the gorm row types of the consignment tables. Each
// aggregate model converts to and from its domain type with ToDomain and a
// FromDomain constructor; the domain packages never see gorm tags.
package models
