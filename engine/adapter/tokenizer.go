package adapter

import "strings"

// statusLine reports whether line is one of the ELM327 status/banner lines
// ("SEARCHING...", "BUS INIT: OK", "STOPPED", "NODATA", the lone "OK") rather
// than hex response data, per §4.3 step 1 ("discard empty lines and ELM
// status lines").
func statusLine(line string) bool {
	if line == "" {
		return true
	}
	for _, r := range line {
		if !isHexDigit(r) {
			return true
		}
	}
	return false
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}

// Tokenize parses raw adapter response text into Records, following §4.3:
// split into lines, discard status lines, strip an optional CAN-ID+PCI
// header per line, then walk (0x41, PID, data...) tuples until exhausted.
// headersOn tells the tokenizer whether the physical adapter was asked for
// headers (ATH1) on this connection; it does not depend on any client's
// session flags.
func Tokenize(text string, headersOn bool) []Record {
	var records []Record
	for _, rawLine := range splitLines(text) {
		line := stripSpaces(rawLine)
		if statusLine(line) {
			continue
		}
		ecu, body, ok := splitHeader(line, headersOn)
		if !ok {
			continue
		}
		data, err := hexDecode(body)
		if err != nil {
			continue
		}
		records = append(records, tokenizeFrame(ecu, data)...)
	}
	return records
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")
	return strings.Split(text, "\r")
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// splitHeader strips the CAN-ID+PCI-byte prefix (3 hex chars ID, 2 hex chars
// PCI length) when headersOn, verifying the PCI length against the
// remaining bytes per §4.3 step 3; on mismatch it returns ok=false so the
// caller logs-and-continues.
func splitHeader(line string, headersOn bool) (ecu, body string, ok bool) {
	if !headersOn {
		return "", line, true
	}
	if len(line) < 5 {
		return "", "", false
	}
	ecu = line[:3]
	pciHex := line[3:5]
	rest := line[5:]
	pciBytes, err := hexDecode(pciHex)
	if err != nil || len(pciBytes) != 1 {
		return "", "", false
	}
	restBytes, err := hexDecode(rest)
	if err != nil {
		return "", "", false
	}
	if int(pciBytes[0]) != len(restBytes) {
		return "", "", false
	}
	return ecu, rest, true
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, errOddHex
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, ok1 := hexNibble(s[i*2])
		lo, ok2 := hexNibble(s[i*2+1])
		if !ok1 || !ok2 {
			return nil, errBadHex
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// tokenizeFrame walks (service, pid, data...) tuples out of one frame's
// bytes, consuming each PID's known data length from §6's table so that
// combined multi-PID requests (e.g. "01 05 0C") parse into multiple
// Records. An unknown PID rejects the remainder of the frame, per §6
// ("Unknown PIDs have length 0 and are rejected in multi-PID parsing.").
func tokenizeFrame(ecu string, data []byte) []Record {
	var records []Record
	i := 0
	for i+1 < len(data) {
		service := data[i]
		if service != 0x41 {
			i++
			continue
		}
		pid := data[i+1]
		n, known := PIDDataLen(pid)
		if !known {
			break
		}
		if i+2+n > len(data) {
			break
		}
		records = append(records, Record{ECU: ecu, Service: service, PID: pid, Data: data[i+2 : i+2+n]})
		i += 2 + n
	}
	return records
}
