package lift

import "errors"

// Sentinel "not handled by this lifter phase" errors let Lift try each
// category in turn without a giant combined switch; any other error from
// a phase is a real lift failure and is propagated.
var (
	errNotALU    = errors.New("lift: not an ALU op")
	errNotMemory = errors.New("lift: not a memory op")
	errNotAtomic = errors.New("lift: not an atomic op")
	errNotCSR    = errors.New("lift: not a CSR op")
)
