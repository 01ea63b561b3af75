package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Commands
	CmdID      = "AT+ID"
	CmdKey     = "AT+KEY"
	CmdADR     = "AT+ADR"
	CmdMsgHex  = "AT+CMSGHEX"
	ADROn      = "ON"
	ADROff     = "OFF"
	KeyNwkSKey = "NWKSKEY"
	KeyAppSKey = "APPSKEY"
	KeyAppKey  = "APPKEY"

	// Responses
	MsgHexDone = "+CMSGHEX: Done"
	MsgHexAck  = "+CMSGHEX: ACK Received"
)

// Field identifies which identity value an +ID line carries.
type Field int

const (
	FieldNone Field = iota
	FieldDevAddr
	FieldDevEUI
	FieldAppEUI
)

func (f Field) String() string {
	switch f {
	case FieldDevAddr:
		return "DevAddr"
	case FieldDevEUI:
		return "DevEui"
	case FieldAppEUI:
		return "AppEui"
	default:
		return "none"
	}
}

type MsgHexStatus int

const (
	MsgHexOther MsgHexStatus = iota // Progress lines and device chatter
	MsgHexAcked                     // Network acknowledged the uplink
	MsgHexFinished                  // Transmission cycle complete
)
