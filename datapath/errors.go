package datapath

import (
	"errors"
	"fmt"
)

// ErrEvicted is the close reason handed to a connection displaced by a
// reconnect claiming the same datapath id.
var ErrEvicted = errors.New("displaced by a new connection for the same datapath")

// DPIDString formats a datapath id the way it appears in logs and the
// REST surface.
func DPIDString(dpid uint64) string {
	return fmt.Sprintf("of:0x%016x", dpid)
}
