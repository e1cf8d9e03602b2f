package sercos3

// CommPhase is a Sercos III communication phase, CP0 (link idle) through
// CP4 (full cyclic operation).
type CommPhase uint8

const (
	CP0 CommPhase = iota
	CP1
	CP2
	CP3
	CP4
)

func (p CommPhase) String() string {
	switch p {
	case CP0:
		return "CP0"
	case CP1:
		return "CP1"
	case CP2:
		return "CP2"
	case CP3:
		return "CP3"
	case CP4:
		return "CP4"
	default:
		return "CP?"
	}
}

// HasDeviceControl reports whether the phase carries C-DEV/S-DEV words
// (true for CP1 and above).
func (p CommPhase) HasDeviceControl() bool { return p >= CP1 }

// HasHotPlug reports whether the phase carries the MDT0/AT0 hot-plug field
// (true for CP3 and above).
func (p CommPhase) HasHotPlug() bool { return p >= CP3 }

// HasConnections reports whether configured real-time connections are
// active (true only in CP4).
func (p CommPhase) HasConnections() bool { return p == CP4 }
