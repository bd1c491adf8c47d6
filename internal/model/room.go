package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// FacilitySeparator delimits facility tags in the stored column.
const FacilitySeparator = ","

// Room is a bookable meeting room.
type Room struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"size:64;not null" json:"name"`
	Address    string     `gorm:"size:256;not null" json:"address"`
	Facilities Facilities `gorm:"type:varchar(256);not null" json:"facilities"`
	CreatedAt  time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updatedAt"`
}

// Facilities is an ordered set of facility tags such as "projector" or "whiteboard".
type Facilities []string

// NewFacilities trims the tags, drops empty ones and keeps the first occurrence of duplicates.
func NewFacilities(tags []string) Facilities {
	seen := make(map[string]struct{}, len(tags))
	out := make(Facilities, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Validate rejects tags that would not survive the delimited storage format.
func (f Facilities) Validate() error {
	for _, tag := range f {
		if strings.Contains(tag, FacilitySeparator) {
			return fmt.Errorf("facility %q must not contain %q", tag, FacilitySeparator)
		}
	}
	return nil
}

// Value implements driver.Valuer.
func (f Facilities) Value() (driver.Value, error) {
	return strings.Join(f, FacilitySeparator), nil
}

// Scan implements sql.Scanner.
func (f *Facilities) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*f = Facilities{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Facilities", src)
	}
	if raw == "" {
		*f = Facilities{}
		return nil
	}
	*f = Facilities(strings.Split(raw, FacilitySeparator))
	return nil
}
