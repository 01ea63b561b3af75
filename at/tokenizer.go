package at

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
)

var (
	devAddrPattern  = regexp.MustCompile(`^\+ID: DevAddr, (([0-9A-Fa-f]{2}[:-]){3}[0-9A-Fa-f]{2})`)
	devEUIPattern   = regexp.MustCompile(`^\+ID: DevEui, (([0-9A-Fa-f]{2}[:-]){7}[0-9A-Fa-f]{2})`)
	appEUIPattern   = regexp.MustCompile(`^\+ID: AppEui, (([0-9A-Fa-f]{2}[:-]){7}[0-9A-Fa-f]{2})`)
	keyErrorPattern = regexp.MustCompile(`^\+KEY: ERROR\((.*)\)`)
)

// idPatterns is evaluated in order; the first match wins.
var idPatterns = []struct {
	field   Field
	pattern *regexp.Regexp
}{
	{FieldDevAddr, devAddrPattern},
	{FieldDevEUI, devEUIPattern},
	{FieldAppEUI, appEUIPattern},
}

// Splitter is used for tokenizing LoRaWAN modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings. When atEOF is true, any
// remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// MatchID reports which identity field an +ID response line carries and
// the hex-octet value it captured. Lines that match none of the patterns
// return FieldNone.
func MatchID(line string) (Field, string) {
	for _, p := range idPatterns {
		if m := p.pattern.FindStringSubmatch(line); m != nil {
			return p.field, m[1]
		}
	}
	return FieldNone, ""
}

// MatchKeyError extracts the reason from a "+KEY: ERROR(<reason>)" line.
func MatchKeyError(line string) (string, bool) {
	m := keyErrorPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ClassifyMsgHex identifies the lines that drive the payload send loop.
// Comparison is exact, anything else is MsgHexOther.
func ClassifyMsgHex(line string) MsgHexStatus {
	switch line {
	case MsgHexDone:
		return MsgHexFinished
	case MsgHexAck:
		return MsgHexAcked
	default:
		return MsgHexOther
	}
}

// KeyCommand builds AT+KEY=<TYPE>,"<value>".
func KeyCommand(keyType, value string) string {
	return fmt.Sprintf(`%s=%s,"%s"`, CmdKey, keyType, value)
}

// ADRCommand builds AT+ADR=ON or AT+ADR=OFF.
func ADRCommand(enabled bool) string {
	if enabled {
		return CmdADR + "=" + ADROn
	}
	return CmdADR + "=" + ADROff
}

// MsgHexCommand builds AT+CMSGHEX="<payload>".
func MsgHexCommand(payload string) string {
	return fmt.Sprintf(`%s="%s"`, CmdMsgHex, payload)
}
