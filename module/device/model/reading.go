package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reading is one persisted sensor sample. History lives in Mongo, keyed by
// device id and time; the live copy of the same data travels the bus as a
// telemetry message.
type Reading struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	DeviceID    string                 `bson:"device_id" json:"device_id"`
	Timestamp   time.Time              `bson:"timestamp" json:"timestamp"`
	Temperature *float64               `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Humidity    *float64               `bson:"humidity,omitempty" json:"humidity,omitempty"`
	Pressure    *float64               `bson:"pressure,omitempty" json:"pressure,omitempty"`
	Voltage     *float64               `bson:"voltage,omitempty" json:"voltage,omitempty"`
	CustomData  map[string]interface{} `bson:"custom_data,omitempty" json:"custom_data,omitempty"`
}
