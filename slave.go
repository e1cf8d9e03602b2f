package sercos3

// Activity is a slave's projection status.
type Activity uint8

const (
	Inactive Activity = iota
	Active
)

// MaxSlaves is the compile-time maximum number of configured slaves.
const MaxSlaves = 511

// Slave is one configured Sercos slave.
type Slave struct {
	Address         uint16 // Sercos address, 1..511
	TopologyAddress uint16
	Activity        Activity
	PreferredPort   Port

	ServiceContainer any // opaque reference to the service-channel container; lifecycle only

	MissCounter    uint8
	LastSDev       uint16
	CDev           uint16
	ValidThisCycle bool // S-DEV recorded as valid this cycle
	allowedMisses  uint8
}

// AllowedMisses returns the configured consecutive-miss threshold before
// the slave is removed from the topology scan list.
func (s *Slave) AllowedMisses() uint8 { return s.allowedMisses }

// SetAllowedMisses configures the consecutive-miss threshold.
func (s *Slave) SetAllowedMisses(n uint8) { s.allowedMisses = n }

// SlaveList holds the ordered, up-to-MaxSlaves sequence of configured
// slaves together with the per-port topology scan lists the redundancy
// reader and the slave-removal logic operate on. Index 0 is reserved and
// never used for a real slave, matching the one-based Sercos addressing.
type SlaveList struct {
	Slaves []Slave // index 0 reserved; len(Slaves)-1 == number of slave slots

	// Projected (active) address lists, in scan order, one per port. A
	// slave's position in these lists is its "projected" position; a
	// deactivated slave is removed from here but stays in Deactivated.
	ScanListPort1 []uint16
	ScanListPort2 []uint16

	// Deactivated holds addresses removed from projection (e.g. by the
	// miss-threshold slave-removal logic) but still known to the
	// configuration graph, pending re-admission via hot-plug.
	Deactivated []uint16

	byAddress map[uint16]int // address -> index into Slaves
}

// NewSlaveList creates an empty slave list with index 0 reserved.
func NewSlaveList() *SlaveList {
	return &SlaveList{
		Slaves:    make([]Slave, 1),
		byAddress: make(map[uint16]int),
	}
}

// IndexOf returns the slave index for a Sercos address, or -1 if unknown.
func (l *SlaveList) IndexOf(address uint16) int {
	idx, ok := l.byAddress[address]
	if !ok {
		return -1
	}
	return idx
}

// AddSlave projects a new slave at the given address. Returns
// ReturnWrongSlaveAddress if the address is already used or out of range.
func (l *SlaveList) AddSlave(address uint16, preferredPort Port) (int, ReturnCode) {
	if address == 0 || address > MaxSlaves {
		return -1, ReturnWrongSlaveAddress
	}
	if _, exists := l.byAddress[address]; exists {
		return -1, ReturnWrongSlaveAddress
	}
	idx := len(l.Slaves)
	l.Slaves = append(l.Slaves, Slave{
		Address:       address,
		Activity:      Active,
		PreferredPort: preferredPort,
	})
	l.byAddress[address] = idx
	l.ScanListPort1 = append(l.ScanListPort1, address)
	l.ScanListPort2 = append(l.ScanListPort2, address)
	return idx, ReturnOK
}

// ActiveIndices returns the indices of all currently active slaves, in
// ascending index order.
func (l *SlaveList) ActiveIndices() []int {
	out := make([]int, 0, len(l.Slaves))
	for i := 1; i < len(l.Slaves); i++ {
		if l.Slaves[i].Activity == Active {
			out = append(out, i)
		}
	}
	return out
}

// scanList returns the mutable scan list for the given port.
func (l *SlaveList) scanList(port Port) *[]uint16 {
	if port == Port1 {
		return &l.ScanListPort1
	}
	return &l.ScanListPort2
}

// RemoveFromPortOnward deletes address and every slave behind it (i.e. at a
// later scan position) from the given port's scan list, because they are
// now unreachable behind the missing slave on that port.
func (l *SlaveList) RemoveFromPortOnward(port Port, address uint16) bool {
	list := l.scanList(port)
	pos := -1
	for i, a := range *list {
		if a == address {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}
	*list = (*list)[:pos]
	return true
}

// LastAddressOnPort returns the address of the last slave currently in the
// port's scan list, and whether the list is non-empty.
func (l *SlaveList) LastAddressOnPort(port Port) (uint16, bool) {
	list := *l.scanList(port)
	if len(list) == 0 {
		return 0, false
	}
	return list[len(list)-1], true
}

// Deactivate marks the slave at address as inactive, zeroes its S-DEV, and
// records it in the Deactivated list for future hot-plug re-admission. It
// does not touch the configuration graph.
func (l *SlaveList) Deactivate(address uint16) {
	idx := l.IndexOf(address)
	if idx < 0 {
		return
	}
	l.Slaves[idx].Activity = Inactive
	l.Slaves[idx].LastSDev = 0
	l.Deactivated = append(l.Deactivated, address)
}
