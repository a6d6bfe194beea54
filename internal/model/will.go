package model

import "time"

// WillStatus represents the lifecycle state of a registered will.
type WillStatus string

const (
	WillStatusActive  WillStatus = "active"
	WillStatusRevoked WillStatus = "revoked"
)

// WillSource records which flow registered the will.
type WillSource string

const (
	WillSourceSingle WillSource = "single"
	WillSourceBulk   WillSource = "bulk"
)

// Will is a registered will record.
type Will struct {
	ID            string     `json:"id"`
	TestatorName  string     `json:"testator_name"`
	DOB           string     `json:"dob"`
	Address       string     `json:"address"`
	Postcode      string     `json:"postcode"`
	WillLocation  string     `json:"will_location"`
	SolicitorName string     `json:"solicitor_name,omitempty"`
	WillDate      string     `json:"will_date,omitempty"`
	ExecutorName  string     `json:"executor_name,omitempty"`
	FirmID        string     `json:"firm_id"`
	Status        WillStatus `json:"status"`
	Source        WillSource `json:"source"`
	CreatedAt     time.Time  `json:"created_at"`
}

// WillFromRecord builds a Will from a validated upload record keyed by
// catalog field name. Missing optional fields stay empty.
func WillFromRecord(record map[string]string, firmID string, source WillSource) Will {
	return Will{
		TestatorName:  record["testatorName"],
		DOB:           record["dob"],
		Address:       record["address"],
		Postcode:      record["postcode"],
		WillLocation:  record["willLocation"],
		SolicitorName: record["solicitorName"],
		WillDate:      record["willDate"],
		ExecutorName:  record["executorName"],
		FirmID:        firmID,
		Status:        WillStatusActive,
		Source:        source,
	}
}
