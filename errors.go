package sercos3

// ReturnCode is the typed result returned by every public API of the
// cyclic core, per the return code taxonomy of the Sercos master. It
// implements the error interface directly so a ReturnCode can be returned,
// compared, and logged without an extra wrapping layer, the way a driver
// error enum would be used in C, translated to idiomatic Go.
type ReturnCode int

const (
	ReturnOK ReturnCode = iota
	ReturnWrongPhase
	ReturnConnectionNotConfigured
	ReturnConnectionNotMasterProduced
	ReturnConnectionNotSlaveProduced
	ReturnIllegalConnectionState
	ReturnConnectionDataInvalid
	ReturnTelegramOverrun
	ReturnTopologyChanged
	ReturnNoLinkAttached
	ReturnNoTelegramsReceived
	ReturnMstMiss
	ReturnMstWindowError
	ReturnInsufficientRxRam
	ReturnInsufficientTxRam
	ReturnFaultyMdtLength
	ReturnFaultyAtLength
	ReturnNoBinConfig
	ReturnWrongBinConfigVersion
	ReturnWrongBinConfigFormat
	ReturnWrongSlaveAddress
	ReturnNoProducerKey
	ReturnNoConsumerListKey
	ReturnNoConsumerKey
	ReturnNoConfigurationKey
	ReturnNoRtbConfigKey
	ReturnDoubleProducer
	ReturnNoProducer
	ReturnNoConsumer
	ReturnCycleTimeUnequal
	ReturnApplicationIdUnavailable
	ReturnBinConfigVersionUnavailable
	ReturnBufferTooSmall
	ReturnConnInstAlreadyUsed
	ReturnConnInstTooHigh
	ReturnConnNbrAlreadyUsed
	ReturnTooManyConnForMaster
	ReturnTooManyConnForSlave
	ReturnTooManyConnections
	ReturnTooManyConfigurations
	ReturnTooManyRtbConfig
	ReturnTooManyIdnForConn
	ReturnTooManySlaveSetup
	ReturnNoSetupParameterKey
	ReturnNoSetupListKey
	ReturnTooManyParameterInList
	ReturnTooManyParameterData
	ReturnTooManySetupParameter
	ReturnTooManySetupLists
	ReturnSystemError
)

var returnCodeNames = map[ReturnCode]string{
	ReturnOK:                          "no error",
	ReturnWrongPhase:                  "function not allowed in current communication phase",
	ReturnConnectionNotConfigured:     "connection is not configured",
	ReturnConnectionNotMasterProduced: "connection is not produced by the master",
	ReturnConnectionNotSlaveProduced:  "connection is not produced by a slave",
	ReturnIllegalConnectionState:      "illegal connection state requested",
	ReturnConnectionDataInvalid:       "connection data is currently invalid",
	ReturnTelegramOverrun:             "telegram processing overran the cycle",
	ReturnTopologyChanged:             "topology changed",
	ReturnNoLinkAttached:              "no link attached",
	ReturnNoTelegramsReceived:         "no telegrams were received this cycle",
	ReturnMstMiss:                     "MST was missed",
	ReturnMstWindowError:              "MST window error",
	ReturnInsufficientRxRam:           "insufficient Rx RAM for configured telegrams",
	ReturnInsufficientTxRam:           "insufficient Tx RAM for configured telegrams",
	ReturnFaultyMdtLength:             "MDT length outside supported range",
	ReturnFaultyAtLength:              "AT length outside supported range",
	ReturnNoBinConfig:                 "buffer does not contain a binary configuration",
	ReturnWrongBinConfigVersion:       "binary configuration version not supported",
	ReturnWrongBinConfigFormat:        "binary configuration format is malformed",
	ReturnWrongSlaveAddress:           "referenced Sercos address is not known",
	ReturnNoProducerKey:               "producer key does not resolve",
	ReturnNoConsumerListKey:           "consumer list key does not resolve",
	ReturnNoConsumerKey:               "consumer key does not resolve",
	ReturnNoConfigurationKey:         "configuration key does not resolve",
	ReturnNoRtbConfigKey:              "real-time-bit configuration key does not resolve",
	ReturnDoubleProducer:              "connection has more than one producer",
	ReturnNoProducer:                  "connection has no producer",
	ReturnNoConsumer:                  "connection has no consumer",
	ReturnCycleTimeUnequal:            "connection cycle time is not a multiple of the communication cycle time",
	ReturnApplicationIdUnavailable:    "no connection matches the requested application id",
	ReturnBinConfigVersionUnavailable: "requested binary configuration version is not available",
	ReturnBufferTooSmall:              "provided buffer is too small",
	ReturnConnInstAlreadyUsed:         "connection instance slot already used",
	ReturnConnInstTooHigh:             "connection instance slot exceeds configured maximum",
	ReturnConnNbrAlreadyUsed:          "connection number already used",
	ReturnTooManyConnForMaster:        "no free connection instance on the master",
	ReturnTooManyConnForSlave:         "no free connection instance on the slave",
	ReturnTooManyConnections:          "too many connections configured",
	ReturnTooManyConfigurations:       "too many configurations",
	ReturnTooManyRtbConfig:            "too many real-time-bit configurations",
	ReturnTooManyIdnForConn:           "too many IDNs for a single connection",
	ReturnTooManySlaveSetup:           "too many slave setup entries",
	ReturnNoSetupParameterKey:         "setup parameter key does not resolve",
	ReturnNoSetupListKey:              "setup parameter list key does not resolve",
	ReturnTooManyParameterInList:      "too many parameters in a setup list",
	ReturnTooManyParameterData:        "setup parameter data too long",
	ReturnTooManySetupParameter:       "too many setup parameters",
	ReturnTooManySetupLists:           "too many setup parameter lists",
	ReturnSystemError:                 "internal system error",
}

// Error implements the error interface so a ReturnCode can be used anywhere
// a Go error is expected, while still carrying the exact taxonomy code.
func (rc ReturnCode) Error() string {
	if name, ok := returnCodeNames[rc]; ok {
		return name
	}
	return "unknown return code"
}

// Ok reports whether rc represents successful completion.
func (rc ReturnCode) Ok() bool {
	return rc == ReturnOK
}

// CyclicResult is the return type of cyclic_handling, restricted to the
// subset of ReturnCode values that the cyclic engine itself can produce.
type CyclicResult = ReturnCode
