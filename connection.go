package sercos3

import "time"

// ParticipantKind distinguishes the master from a slave as a connection
// participant.
type ParticipantKind uint8

const (
	ParticipantMaster ParticipantKind = iota
	ParticipantSlave
)

// ParticipantRef identifies one connection participant: either the master,
// or a slave by its index into Instance.Slaves.
type ParticipantRef struct {
	Kind       ParticipantKind
	SlaveIndex int
}

// IsMaster reports whether the participant is the master.
func (p ParticipantRef) IsMaster() bool { return p.Kind == ParticipantMaster }

// MonitoringType is the S-0-1050.x.1 configuration's monitoring mode.
type MonitoringType uint8

const (
	MonitoringClockSynchronous MonitoringType = iota
	MonitoringAsyncNoWatchdog
	MonitoringAsyncWithWatchdog
	MonitoringCyclicNoNewData
)

// CheckMode selects how a consumer validates successive C-CON values of a
// slave-produced connection: by its 3-bit counter field, or by the toggling
// of the new-data bit alone.
type CheckMode uint8

const (
	CheckModeCounter CheckMode = iota
	CheckModeNewDataOnly
)

// C-CON bit layout. The counter occupies the low 3 bits (values 0..7,
// wrapping); the two real-time bits sit at bits 8-9.
const (
	CConProducerReady uint16 = 1 << 15
	CConFlowControl   uint16 = 1 << 14
	CConNewData       uint16 = 1 << 13
	CConCounterMask   uint16 = 0x0007
	CConCounterShift         = 0
	CConRTBitsMask    uint16 = 0x0300
	CConRTBitsShift          = 8
)

// CConCounter extracts the 3-bit production counter from a C-CON word.
func CConCounter(cCon uint16) uint16 { return (cCon & CConCounterMask) >> CConCounterShift }

// NextCConCounter advances the cCon word's counter field by one, wrapping
// modulo 8, and toggles the new-data bit, leaving the other bits untouched.
func NextCConCounter(cCon uint16) uint16 {
	counter := (CConCounter(cCon) + 1) & (CConCounterMask >> CConCounterShift)
	cCon = (cCon &^ CConCounterMask) | (counter << CConCounterShift)
	return cCon ^ CConNewData
}

// ToggleNewData flips the new-data bit only, leaving the counter untouched.
func ToggleNewData(cCon uint16) uint16 { return cCon ^ CConNewData }

// Configuration is the S-0-1050 sub-element 1 setup shared by the producer
// and the consumer side of a connection: one Configuration per
// participant side, since producer and consumer of the same connection can
// have distinct IDN layouts and monitoring modes.
type Configuration struct {
	Active         bool
	IsProducerSide bool
	Monitoring     MonitoringType
	Capability     uint16
	Idns           []uint32 // ordered IDN references, payload layout
}

// RtBit maps one real-time bit of the connection control word to a bit of a
// referenced IDN's value.
type RtBit struct {
	Idn         uint32
	BitPosition uint8
}

// RtBitBinding is an optional, per connection-participant binding of up to
// 4 real-time bits.
type RtBitBinding struct {
	Bits [4]RtBit
	N    int // number of valid entries in Bits
}

// Connection is the fundamental real-time data object: one configured
// producer, one or more consumers, carried in a fixed telegram slot.
type Connection struct {
	Index          uint32
	Producer       ParticipantRef
	ProducerConfig Configuration
	RtBitsProducer RtBitBinding

	Consumers       []ParticipantRef
	ConsumerConfigs []Configuration
	RtBitsConsumers []RtBitBinding

	Direction      TelegramDirection
	TelegramNumber uint8
	ByteOffset     uint32
	Length         uint32

	CycleTime          time.Duration
	AllowedMissThreshold uint8
	ApplicationID      uint16
	Name               string

	// TSrefMask schedules low-rate connections across several Sercos
	// cycles: bit n set means this connection is marked on cycles where
	// the hardware TSref counter modulo 16 equals n. Zero means every
	// cycle.
	TSrefMask uint16
}

// IsCC reports whether the connection is cross-communication: produced by a
// slave and consumed exclusively by other slaves, never by the master. CC
// data transits the master's port-relative write buffer instead of an
// ordinary RTD buffer slot.
func (c *Connection) IsCC() bool {
	if c.Producer.IsMaster() {
		return false
	}
	for _, cons := range c.Consumers {
		if cons.IsMaster() {
			return false
		}
	}
	return len(c.Consumers) > 0
}

// ProducerState is the lifecycle of a master-produced connection.
type ProducerState uint8

const (
	ProducerPrepare ProducerState = iota
	ProducerReady
	ProducerProducing
	ProducerWaiting
	ProducerStopping
)

// ConsumerState is the lifecycle of a slave-produced connection as observed
// by the master.
type ConsumerState uint8

const (
	ConsumerInit ConsumerState = iota
	ConsumerPrepare
	ConsumerWaiting
	ConsumerConsuming
	ConsumerWarning
	ConsumerStopped
	ConsumerError
)

// ConnectionPointers are the buffer-relative pointers the telegram-layout
// builder resolves for one connection: byte offsets into a named Tx/Rx
// buffer area, one per configured buffer slot (and, for an Rx connection,
// per port).
type ConnectionPointers struct {
	TxOffsets [MaxBufferSets]uint32
	RxOffsets [2][MaxBufferSets]uint32
}

// ConnectionRuntime is the mutable per-cycle state of one connection,
// indexed in parallel with Instance.Connections.
type ConnectionRuntime struct {
	Pointers ConnectionPointers

	// Master-produced side.
	State    ProducerState
	CCon     uint16
	WasJustSetProducing bool

	// Slave-produced side (single tracked consumer: the master itself, or
	// the first master-relevant consumer participant).
	ConsState       ConsumerState
	CheckMode       CheckMode
	ExpectedCCon    uint16
	LastCCon        uint16
	ConsecutiveErr  uint8
	AbsoluteErr     uint32
	ProducerPort    Port

	// HasReadStateThisCycle marks that GetConnectionState has been called
	// for this connection since the current cycle started; GetConnectionData
	// refuses to release data otherwise. Reset to false at the start of
	// every CP4 cycle, set only by GetConnectionState.
	HasReadStateThisCycle bool
}
