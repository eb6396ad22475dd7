package domain

import (
	"time"

	"github.com/google/uuid"
)

type Field struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OwnerID      uuid.UUID `json:"owner_id" db:"owner_id"`
	Name         string    `json:"name" db:"name"`
	Location     string    `json:"location" db:"location"`
	AreaHectares float64   `json:"area_hectares" db:"area_hectares"`
	CropType     string    `json:"crop_type" db:"crop_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "online"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
)

type Device struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	FieldID      uuid.UUID    `json:"field_id" db:"field_id"`
	Name         string       `json:"name" db:"name"`
	DeviceType   string       `json:"device_type" db:"device_type"`
	SerialNumber string       `json:"serial_number" db:"serial_number"`
	Status       DeviceStatus `json:"status" db:"status"`
	LastSeenAt   *time.Time   `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Reading is one sensor sample. Absent measurements stay nil.
type Reading struct {
	ID           uuid.UUID `json:"id" db:"id"`
	DeviceID     uuid.UUID `json:"device_id" db:"device_id"`
	FieldID      uuid.UUID `json:"field_id" db:"field_id"`
	SoilMoisture *float64  `json:"soil_moisture" db:"soil_moisture"`
	Temperature  *float64  `json:"temperature" db:"temperature"`
	Humidity     *float64  `json:"humidity" db:"humidity"`
	PH           *float64  `json:"ph" db:"ph"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}

type Statistics struct {
	Fields              int      `json:"fields" db:"fields"`
	Devices             int      `json:"devices" db:"devices"`
	DevicesOnline       int      `json:"devices_online" db:"devices_online"`
	TotalAreaHectares   float64  `json:"total_area_hectares" db:"total_area_hectares"`
	ReadingsLast24h     int      `json:"readings_last_24h" db:"readings_last_24h"`
	AverageSoilMoisture *float64 `json:"average_soil_moisture" db:"average_soil_moisture"`
}
