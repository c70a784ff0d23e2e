package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"TeleProject/logger"
	"TeleProject/module/device/model"
	devsrv "TeleProject/module/device/service"
	"TeleProject/service/archive"
	"TeleProject/service/bus"
	"TeleProject/service/telemetry"
)

// ErrUnknownDevice rejects readings for device ids that are not registered.
var ErrUnknownDevice = errors.New("ingest: unknown device")

// DeviceStore is the slice of the device service the write path needs.
type DeviceStore interface {
	GetByDeviceID(ctx context.Context, deviceID string) (model.Device, error)
	TouchLastSeen(ctx context.Context, deviceID string, ts time.Time) error
}

// ReadingStore persists accepted readings.
type ReadingStore interface {
	Insert(ctx context.Context, r model.Reading) error
}

// Service is the telemetry write path: validate, persist the reading, bump
// the device's last_seen, publish onto the bus and mirror to the archive.
// Persist and publish are deliberately not transactionally linked; either
// can succeed while the other fails.
type Service struct {
	devices  DeviceStore
	readings ReadingStore
	bus      bus.Bus
	mirror   *archive.Producer // nil when the Kafka mirror is disabled
}

func NewService(devices DeviceStore, readings ReadingStore, b bus.Bus, mirror *archive.Producer) *Service {
	return &Service{devices: devices, readings: readings, bus: b, mirror: mirror}
}

// Ingest accepts one raw telemetry payload. Parse failures and unknown
// devices reject the reading; persistence and publish failures are
// independent and the other effect is still attempted.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*telemetry.Message, error) {
	tm, err := telemetry.Parse(raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.devices.GetByDeviceID(ctx, tm.DeviceID); err != nil {
		if errors.Is(err, devsrv.ErrNotFound) {
			return nil, ErrUnknownDevice
		}
		return nil, err
	}

	ts := tm.Timestamp()

	var firstErr error
	if err := s.readings.Insert(ctx, model.Reading{
		DeviceID:    tm.DeviceID,
		Timestamp:   ts,
		Temperature: tm.Temperature,
		Humidity:    tm.Humidity,
		Pressure:    tm.Pressure,
		Voltage:     tm.Voltage,
		CustomData:  tm.Extra,
	}); err != nil {
		logger.Errorf("[ingest] persist failed device_id=%s err=%v", tm.DeviceID, err)
		firstErr = err
	} else if err := s.devices.TouchLastSeen(ctx, tm.DeviceID, ts); err != nil {
		logger.Warnf("[ingest] last_seen bump failed device_id=%s err=%v", tm.DeviceID, err)
	}

	// Live push: per-device topic plus the broadcast mirror.
	for _, topic := range []string{bus.DeviceTopic(tm.DeviceID), bus.BroadcastTopic} {
		if err := s.bus.Publish(ctx, topic, tm.Raw()); err != nil {
			logger.Errorf("[ingest] publish failed topic=%s err=%v", topic, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if s.mirror != nil {
		s.mirror.Mirror(tm.DeviceID, tm.Raw())
	}
	return tm, firstErr
}
