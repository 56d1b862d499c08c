package openflow

// Kind is a version independent classification of a message. Type codes
// shift between protocol versions (barrier moved from 18/19 to 20/21
// after 1.0, stats became multipart in 1.3); subscribers declare interest
// in kinds so an application observes the same event regardless of which
// version a switch negotiated.
type Kind int

const (
	KindUnknown Kind = iota

	KindHello
	KindError
	KindEchoRequest
	KindEchoReply
	KindExperimenter
	KindFeaturesRequest
	KindFeaturesReply
	KindGetConfigRequest
	KindGetConfigReply
	KindSetConfig
	KindPacketIn
	KindFlowRemoved
	KindPortStatus
	KindPacketOut
	KindFlowMod
	KindGroupMod
	KindPortMod
	KindTableMod
	KindStatsRequest
	KindStatsReply
	KindBarrierRequest
	KindBarrierReply
	KindQueueGetConfigRequest
	KindQueueGetConfigReply
	KindRoleRequest
	KindRoleReply
	KindGetAsyncRequest
	KindGetAsyncReply
	KindSetAsync
	KindMeterMod
	KindRoleStatus
	KindTableStatus
	KindRequestForward
	KindBundleControl
	KindBundleAdd

	// Connection lifecycle pseudo kinds, published by the connection
	// layer rather than decoded off the wire.
	KindConnected
	KindEstablished
	KindDisconnected
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindHello:                 "hello",
	KindError:                 "error",
	KindEchoRequest:           "echo-request",
	KindEchoReply:             "echo-reply",
	KindExperimenter:          "experimenter",
	KindFeaturesRequest:       "features-request",
	KindFeaturesReply:         "features-reply",
	KindGetConfigRequest:      "get-config-request",
	KindGetConfigReply:        "get-config-reply",
	KindSetConfig:             "set-config",
	KindPacketIn:              "packet-in",
	KindFlowRemoved:           "flow-removed",
	KindPortStatus:            "port-status",
	KindPacketOut:             "packet-out",
	KindFlowMod:               "flow-mod",
	KindGroupMod:              "group-mod",
	KindPortMod:               "port-mod",
	KindTableMod:              "table-mod",
	KindStatsRequest:          "stats-request",
	KindStatsReply:            "stats-reply",
	KindBarrierRequest:        "barrier-request",
	KindBarrierReply:          "barrier-reply",
	KindQueueGetConfigRequest: "queue-get-config-request",
	KindQueueGetConfigReply:   "queue-get-config-reply",
	KindRoleRequest:           "role-request",
	KindRoleReply:             "role-reply",
	KindGetAsyncRequest:       "get-async-request",
	KindGetAsyncReply:         "get-async-reply",
	KindSetAsync:              "set-async",
	KindMeterMod:              "meter-mod",
	KindRoleStatus:            "role-status",
	KindTableStatus:           "table-status",
	KindRequestForward:        "request-forward",
	KindBundleControl:         "bundle-control",
	KindBundleAdd:             "bundle-add",
	KindConnected:             "connected",
	KindEstablished:           "established",
	KindDisconnected:          "disconnected",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// kinds10 covers the 1.0 type space, where vendor, stats and barrier
// codes differ from every later version.
var kinds10 = map[uint8]Kind{
	0: KindHello, 1: KindError, 2: KindEchoRequest, 3: KindEchoReply,
	4: KindExperimenter, 5: KindFeaturesRequest, 6: KindFeaturesReply,
	7: KindGetConfigRequest, 8: KindGetConfigReply, 9: KindSetConfig,
	10: KindPacketIn, 11: KindFlowRemoved, 12: KindPortStatus,
	13: KindPacketOut, 14: KindFlowMod, 15: KindPortMod,
	16: KindStatsRequest, 17: KindStatsReply,
	18: KindBarrierRequest, 19: KindBarrierReply,
	20: KindQueueGetConfigRequest, 21: KindQueueGetConfigReply,
}

// kinds12 covers 1.2, the first version with the modern type layout.
var kinds12 = map[uint8]Kind{
	0: KindHello, 1: KindError, 2: KindEchoRequest, 3: KindEchoReply,
	4: KindExperimenter, 5: KindFeaturesRequest, 6: KindFeaturesReply,
	7: KindGetConfigRequest, 8: KindGetConfigReply, 9: KindSetConfig,
	10: KindPacketIn, 11: KindFlowRemoved, 12: KindPortStatus,
	13: KindPacketOut, 14: KindFlowMod, 15: KindGroupMod,
	16: KindPortMod, 17: KindTableMod,
	18: KindStatsRequest, 19: KindStatsReply,
	20: KindBarrierRequest, 21: KindBarrierReply,
	22: KindQueueGetConfigRequest, 23: KindQueueGetConfigReply,
	24: KindRoleRequest, 25: KindRoleReply,
}

// kinds13 extends 1.2 with multipart (replacing stats at the same codes)
// and the async/meter configuration messages.
var kinds13 = map[uint8]Kind{
	0: KindHello, 1: KindError, 2: KindEchoRequest, 3: KindEchoReply,
	4: KindExperimenter, 5: KindFeaturesRequest, 6: KindFeaturesReply,
	7: KindGetConfigRequest, 8: KindGetConfigReply, 9: KindSetConfig,
	10: KindPacketIn, 11: KindFlowRemoved, 12: KindPortStatus,
	13: KindPacketOut, 14: KindFlowMod, 15: KindGroupMod,
	16: KindPortMod, 17: KindTableMod,
	18: KindStatsRequest, 19: KindStatsReply,
	20: KindBarrierRequest, 21: KindBarrierReply,
	22: KindQueueGetConfigRequest, 23: KindQueueGetConfigReply,
	24: KindRoleRequest, 25: KindRoleReply,
	26: KindGetAsyncRequest, 27: KindGetAsyncReply, 28: KindSetAsync,
	29: KindMeterMod,
}

// kinds14 extends 1.3 with status, request forward and bundle messages.
var kinds14 = map[uint8]Kind{
	0: KindHello, 1: KindError, 2: KindEchoRequest, 3: KindEchoReply,
	4: KindExperimenter, 5: KindFeaturesRequest, 6: KindFeaturesReply,
	7: KindGetConfigRequest, 8: KindGetConfigReply, 9: KindSetConfig,
	10: KindPacketIn, 11: KindFlowRemoved, 12: KindPortStatus,
	13: KindPacketOut, 14: KindFlowMod, 15: KindGroupMod,
	16: KindPortMod, 17: KindTableMod,
	18: KindStatsRequest, 19: KindStatsReply,
	20: KindBarrierRequest, 21: KindBarrierReply,
	22: KindQueueGetConfigRequest, 23: KindQueueGetConfigReply,
	24: KindRoleRequest, 25: KindRoleReply,
	26: KindGetAsyncRequest, 27: KindGetAsyncReply, 28: KindSetAsync,
	29: KindMeterMod,
	30: KindRoleStatus, 31: KindTableStatus, 32: KindRequestForward,
	33: KindBundleControl, 34: KindBundleAdd,
}

var kindTables = map[uint8]map[uint8]Kind{
	V10: kinds10,
	V12: kinds12,
	V13: kinds13,
	V14: kinds14,
}

// KindOf maps a version specific message type code to its canonical kind.
func KindOf(version, typ uint8) Kind {
	table, ok := kindTables[version]
	if !ok {
		return KindUnknown
	}
	k, ok := table[typ]
	if !ok {
		return KindUnknown
	}
	return k
}

// KindOfMessage classifies a decoded message by its header.
func KindOfMessage(m Message) Kind {
	h := m.Hdr()
	return KindOf(h.Version, h.Type)
}
