// Package adapter implements the adapter channel (C3): the single owned TCP
// connection to the physical OBD-II adapter, its connection state machine,
// FIFO request mailbox, and the streaming response tokenizer.
package adapter

import "fmt"

// Record is one parsed service/PID reply, the unit the streaming tokenizer
// produces and the RPM extractor folds over, per the reference spec's
// Design Note: "model as a streaming tokenizer producing {ecu?, pci?,
// service, pid, data[]} records; the RPM extractor is a fold over records."
type Record struct {
	ECU     string // hex CAN ID, e.g. "7E8"; empty when headers were off
	Service byte   // service-echo byte, e.g. 0x41 for a Mode 01 reply
	PID     byte
	Data    []byte
}

// pidDataLen is the Mode-01 PID response data-length table from §6 (bytes of
// data after 0x41 <PID>). Unknown PIDs have length 0 and are rejected by
// multi-PID parsing.
var pidDataLen = map[byte]int{
	0x04: 1, 0x05: 1, 0x0B: 1, 0x0C: 2, 0x0D: 1, 0x0F: 1,
	0x10: 2, 0x11: 1, 0x1F: 2, 0x21: 2, 0x2F: 1, 0x42: 2,
	0x43: 2, 0x44: 2, 0x45: 1, 0x46: 1, 0x49: 1, 0x5C: 1, 0x5E: 2,
}

// PIDDataLen returns the known Mode-01 response data length for pid, and
// whether the PID is recognized at all.
func PIDDataLen(pid byte) (int, bool) {
	n, ok := pidDataLen[pid]
	return n, ok
}

func (r Record) String() string {
	return fmt.Sprintf("Record{ECU:%s Service:%#02x PID:%#02x Data:%x}", r.ECU, r.Service, r.PID, r.Data)
}
