package sercos3

// SetupParameter is one (IDN, data) tuple of a slave parameter setup list,
// applied by an external subsystem (not implemented here); the core only
// owns its storage and reference counting.
type SetupParameter struct {
	Idn      uint32
	Data     []byte
	RefCount int
}

// SetupParameterList is a named, ordered list of setup parameters tagged
// with an application id for bulk selection, mirroring the connection's
// own application-id filtering.
type SetupParameterList struct {
	Name          string
	ApplicationID uint16
	ParamIndices  []int // indices into Instance.SetupParameters
}

// SlaveSetup associates a Sercos address with a parameter list to be
// applied at commissioning (e.g. during hot-plug admission).
type SlaveSetup struct {
	Address      uint16
	ListIndex    int
}
