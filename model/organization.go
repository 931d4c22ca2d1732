package model

import (
	"time"

	"gorm.io/gorm"
)

/*

Organization is a data model for a publishing entity

Example: a federal agency that publishes one or more open data catalogs

Id: primary key, use to identify an organization
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

Name: the display name of the organization
Sources: harvest sources owned by this organization, "has-many" relation
*/

type Organization struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt
	Name      string
	Sources   []HarvestSource `gorm:"foreignKey:OrganizationId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
