package models

import (
	"strconv"
	"strings"
)

// Reasons recorded on a false verdict that did not come from a field mismatch.
const (
	ReasonMissing    = "missing"
	ReasonUnparsable = "unparsable"
)

// Verdict is the reconciliation outcome of one record.
type Verdict struct {
	TrackingKey string
	Matched     bool
	// Mismatches names the fields that differed, or a Reason* constant.
	// It is diagnostic only and never part of the wire format.
	Mismatches []string
}

// VerdictList holds one verdict per input record, in input order.
type VerdictList []Verdict

// String renders the wire format "key,true;key,false;".
func (l VerdictList) String() string {
	var b strings.Builder
	for _, v := range l {
		b.WriteString(v.TrackingKey)
		b.WriteByte(',')
		b.WriteString(strconv.FormatBool(v.Matched))
		b.WriteByte(';')
	}
	return b.String()
}

// MatchedCount returns how many verdicts are true.
func (l VerdictList) MatchedCount() int {
	n := 0
	for _, v := range l {
		if v.Matched {
			n++
		}
	}
	return n
}
