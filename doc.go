// Package sercos3 implements the cyclic core of a Sercos III real-time
// fieldbus master: the per-cycle engine that drives a ring/line topology of
// motion-control slaves through communication phases CP0..CP4, together with
// the telegram-layout builder, connection producer/consumer state machines,
// and the binary connection-configuration codec that the subpackages under
// pkg/ build on.
//
// The raw register-level HAL, CP0/CP1 address-scan protocol, service-channel
// byte-transfer protocol, and hot-plug protocol state machine beyond the
// MDT0/AT0 field are external collaborators, not implemented here.
package sercos3
