package provisioning

import "github.com/google/uuid"

// Custom provisioning service and its two characteristics.
var (
	ServiceUUID = uuid.MustParse("4fafc201-1fb5-459e-8fcc-c5c9c331914b")
	WriteUUID   = uuid.MustParse("beb5483e-36e1-4688-b7f5-ea07361b26a8")
	NotifyUUID  = uuid.MustParse("beb5483f-36e1-4688-b7f5-ea07361b26a8")
)

// Standard SIG assignments.
const (
	DeviceInformation uint16 = 0x180a
	ManufacturerName  uint16 = 0x2a29
	ModelNumber       uint16 = 0x2a24
	FirmwareRevision  uint16 = 0x2a26
)

var baseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// ShortUUID expands a 16-bit SIG UUID onto the Bluetooth base UUID.
func ShortUUID(v uint16) uuid.UUID {
	u := baseUUID
	u[2] = byte(v >> 8)
	u[3] = byte(v)
	return u
}

// Characteristic is a static read-only value.
type Characteristic struct {
	UUID  uuid.UUID
	Value string
}

// GATT is the table the peripheral serves while advertising.
type GATT struct {
	Service    uuid.UUID
	Write      uuid.UUID
	Notify     uuid.UUID
	DeviceInfo uuid.UUID
	Info       []Characteristic
}

// Table builds the provisioning GATT table.
func Table(manufacturer, model, firmware string) GATT {
	return GATT{
		Service:    ServiceUUID,
		Write:      WriteUUID,
		Notify:     NotifyUUID,
		DeviceInfo: ShortUUID(DeviceInformation),
		Info: []Characteristic{
			{UUID: ShortUUID(ManufacturerName), Value: manufacturer},
			{UUID: ShortUUID(ModelNumber), Value: model},
			{UUID: ShortUUID(FirmwareRevision), Value: firmware},
		},
	}
}

// Callbacks are invoked from the radio task. They must not block, parse or
// touch flash.
type Callbacks struct {
	OnConnect    func()
	OnDisconnect func()
	OnWrite      func(p []byte)
}

// Peripheral is the BLE stack.
type Peripheral interface {
	Init(name string) error
	Serve(g GATT, cb Callbacks) error
	Notify(p []byte) error
	Deinit() error
}
