// Package topology implements the redundancy and topology reader of §4.7:
// it drains both ports' telegram-status registers every cycle, clears the
// self-clearing bits, and derives the primary/secondary MST-valid flags the
// rest of the cyclic engine uses to decide whether the ring is intact.
package topology

import (
	log "github.com/sirupsen/logrus"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// TGSR bit layout. AT0Miss/MstMiss/MstDoubleMiss/MstWindowError/MstValid
// are self-clearing on read in hardware; the reader clears them explicitly
// after capturing their value for this cycle.
const (
	BitAT0Miss           uint32 = 1 << 0
	BitMstMiss           uint32 = 1 << 1
	BitMstDoubleMiss     uint32 = 1 << 2
	BitMstWindowError    uint32 = 1 << 3
	BitMstValid          uint32 = 1 << 4
	BitSecondaryMstValid uint32 = 1 << 5

	selfClearingMask = BitAT0Miss | BitMstMiss | BitMstDoubleMiss |
		BitMstWindowError | BitMstValid | BitSecondaryMstValid
)

// Evaluate reads and clears both ports' TGSR, updates the instance's
// redundancy flags, and returns the cycle-local condition the caller
// should propagate from cyclic_handling.
//
// Resolution of the open "defect ring before connection check" question:
// a topology change this cycle takes priority over every other TGSR
// condition and is returned immediately, giving the caller one full cycle
// to re-evaluate the ring before the connection state machines run again
// against what may now be a stale producer/consumer mapping.
func Evaluate(inst *sercos3.Instance) sercos3.ReturnCode {
	var primary, secondary [2]bool
	var mstMiss, mstWindowError bool

	for _, port := range [2]sercos3.Port{sercos3.Port1, sercos3.Port2} {
		tgsr := inst.Regs.GetTGSR(port)
		inst.Priv.TGSR[port-1] = tgsr
		inst.Regs.ClearTGSR(port, selfClearingMask)

		primary[port-1] = tgsr&BitMstValid != 0
		secondary[port-1] = tgsr&BitSecondaryMstValid != 0

		if tgsr&(BitMstMiss|BitMstDoubleMiss) != 0 {
			mstMiss = true
		}
		if tgsr&BitMstWindowError != 0 {
			mstWindowError = true
		}
	}

	if !primary[0] && !primary[1] {
		log.WithField("phase", inst.Phase).Warn("sercos3/topology: no link attached on either port")
		return sercos3.ReturnNoLinkAttached
	}

	changed := primary != inst.Priv.PrimaryMstValid || secondary != inst.Priv.SecondaryMstValid
	inst.Priv.PrimaryMstValid = primary
	inst.Priv.SecondaryMstValid = secondary
	inst.Priv.TopologyChanged = changed

	if changed {
		log.WithFields(log.Fields{
			"port1_primary": primary[0],
			"port2_primary": primary[1],
		}).Info("sercos3/topology: topology changed")
		return sercos3.ReturnTopologyChanged
	}

	if mstWindowError {
		return sercos3.ReturnMstWindowError
	}
	if mstMiss {
		return sercos3.ReturnMstMiss
	}
	return sercos3.ReturnOK
}
