// Package connection implements the connection producer/consumer state
// machines of §4.4 together with the public connection API: production
// marking and consumer evaluation run every CP4 cycle out of the cyclic
// engine, while set_producer_state/set_connection_data/get_connection_data
// and friends are called by the application between cycles.
package connection

import sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"

// MarkProduction rotates the C-CON word of every connection scheduled for
// this cycle's TSref slot (§4.4.1): master-produced connections advance
// their counter and toggle new-data, downgrading a just-finished PRODUCING
// cycle to WAITING; master-consumed connections advance the C-CON they
// expect to observe next.
func MarkProduction(inst *sercos3.Instance) {
	if inst.Phase != sercos3.CP4 {
		return
	}
	tsref := inst.Regs.GetTSrefCounter()
	slot := uint16(1) << (tsref % 16)

	for i := 1; i < len(inst.Connections); i++ {
		c := &inst.Connections[i]
		rt := &inst.ConnRuntime[i]
		if c.TSrefMask != 0 && c.TSrefMask&slot == 0 {
			continue
		}

		if c.Producer.IsMaster() {
			switch rt.State {
			case sercos3.ProducerProducing, sercos3.ProducerWaiting, sercos3.ProducerReady:
				rt.CCon = sercos3.NextCConCounter(rt.CCon)
				if rt.State == sercos3.ProducerProducing {
					rt.State = sercos3.ProducerWaiting
				}
			}
			continue
		}

		switch rt.ConsState {
		case sercos3.ConsumerConsuming, sercos3.ConsumerWarning:
			if rt.CheckMode == sercos3.CheckModeCounter {
				rt.ExpectedCCon = sercos3.NextCConCounter(rt.ExpectedCCon)
			} else {
				rt.ExpectedCCon = sercos3.ToggleNewData(rt.ExpectedCCon)
			}
		}
	}
}
