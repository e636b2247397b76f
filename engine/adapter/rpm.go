package adapter

// ExtractRPM folds over records looking for a Mode 01 PID 0x0C reply,
// taking the first successfully parsed value when multiple ECUs respond —
// the documented Open Question choice in §9 ("this spec takes the first
// parsed value"). RPM = (A*256 + B) / 4.
func ExtractRPM(records []Record) (uint16, bool) {
	for _, r := range records {
		if r.Service != 0x41 || r.PID != 0x0C || len(r.Data) < 2 {
			continue
		}
		rpm := (uint16(r.Data[0])*256 + uint16(r.Data[1])) / 4
		return rpm, true
	}
	return 0, false
}
