package pktchain

import "fmt"

// MsgType is the message-type byte of a pktchain packet header.
type MsgType uint8

// Pktchain packet message types.
const (
	MsgSOB  MsgType = 0x01
	MsgEOB  MsgType = 0x02
	MsgTEST MsgType = 0x20

	MsgDATA             MsgType = 0x40
	MsgDATAInit         MsgType = 0x41
	MsgDATAChecksum     MsgType = 0x42
	MsgDATAInitChecksum MsgType = 0x43

	MsgDATAAck               MsgType = 0x80
	MsgErrorUnknownMsgType   MsgType = 0x81
	MsgErrorEchoMismatch     MsgType = 0x82
	MsgErrorChecksumMismatch MsgType = 0x83
	MsgErrorFeedthruPacket   MsgType = 0x84
)

var msgTypeNames = map[MsgType]string{
	MsgSOB: "SOB", MsgEOB: "EOB", MsgTEST: "TEST",
	MsgDATA:             "DATA",
	MsgDATAInit:         "DATA_INIT",
	MsgDATAChecksum:     "DATA_CHECKSUM",
	MsgDATAInitChecksum: "DATA_INIT_CHECKSUM",
	MsgDATAAck:               "DATA_ACK",
	MsgErrorUnknownMsgType:   "ERROR_UNKNOWN_MSG_TYPE",
	MsgErrorEchoMismatch:     "ERROR_ECHO_MISMATCH",
	MsgErrorChecksumMismatch: "ERROR_CHECKSUM_MISMATCH",
	MsgErrorFeedthruPacket:   "ERROR_FEEDTHRU_PACKET",
}

func (t MsgType) String() string {
	if n, ok := msgTypeNames[t]; ok {
		return n
	}

	return fmt.Sprintf("MsgType(0x%02x)", uint8(t))
}

// EncodeMsgHeader packs a message type, the target branch/leaf position,
// and a payload byte into one 32-bit packet header.
func EncodeMsgHeader(t MsgType, x, y, payload int) (uint32, error) {
	if _, ok := msgTypeNames[t]; !ok {
		return 0, fmt.Errorf("unknown message type: 0x%02x", uint8(t))
	}

	if x < 0 || x >= 1<<8 {
		return 0, fmt.Errorf(
			"x position (%d) cannot be represented with 8 bits", x)
	}

	if y < 0 || y >= 1<<8 {
		return 0, fmt.Errorf(
			"y position (%d) cannot be represented with 8 bits", y)
	}

	if payload < 0 || payload >= 1<<8 {
		return 0, fmt.Errorf(
			"payload (%d) cannot be represented with 8 bits", payload)
	}

	return uint32(t)<<24 | uint32(x)<<16 | uint32(y)<<8 | uint32(payload), nil
}

// DecodeMsgHeader unpacks a 32-bit packet header, rejecting unknown message
// types.
func DecodeMsgHeader(header uint32) (t MsgType, x, y, payload int, err error) {
	t = MsgType(header >> 24)
	if _, ok := msgTypeNames[t]; !ok {
		return 0, 0, 0, 0, fmt.Errorf(
			"unknown message type: 0x%02x", uint8(t))
	}

	return t, int(header >> 16 & 0xFF), int(header >> 8 & 0xFF),
		int(header & 0xFF), nil
}
