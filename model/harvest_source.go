package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// SourceType is the kind of feed a harvest source serves.
type SourceType string

const (
	SourceTypeDcatUS SourceType = "dcatus"
	SourceTypeWaf    SourceType = "waf"
)

// Frequency is how often a harvest source is due.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	// FrequencyManual sources are only harvested when explicitly triggered.
	FrequencyManual Frequency = "manual"
)

/*

HarvestSource is a data model for one external catalog feed under periodic harvest

Example: an agency's data.json endpoint, or a WAF directory of metadata files

Id: primary key, use to identify a source
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

Name: the display name of the source
Url: feed endpoint to harvest
OrganizationId:
Organization: publishing entity that owns this source, "belongs-to" relation
Frequency: how often the source is due ("daily", "weekly", "monthly", "manual")
SchemaType: validation profile for records of this source, see SchemaTypeDcatUSFederal etc.
SourceType: "dcatus" for native catalog JSON, "waf" for directory-listing sources
NotificationEmails: comma separated recipients for job outcome notifications
Jobs: harvest executions of this source over time, "has-many" relation
*/

type HarvestSource struct {
	Id                 string `gorm:"primaryKey"`
	CreatedAt          time.Time
	DeletedAt          gorm.DeletedAt
	Name               string
	Url                string
	OrganizationId     string       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Organization       Organization `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Frequency          Frequency
	SchemaType         string
	SourceType         SourceType
	NotificationEmails string
	Jobs               []HarvestJob `gorm:"foreignKey:HarvestSourceId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

const (
	SchemaTypeDcatUSFederal    = "dcatus1.1: federal"
	SchemaTypeDcatUSNonFederal = "dcatus1.1: non-federal"
)

// NotificationRecipients splits the comma separated NotificationEmails field
// into a cleaned list of addresses.
func (s *HarvestSource) NotificationRecipients() []string {
	var out []string
	for _, addr := range strings.Split(s.NotificationEmails, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
