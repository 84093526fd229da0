package pull

// quiescence implements the two-round ping/pong termination-detection
// protocol of spec.md §4.5, factored out of mainLoop so the state machine
// is independently testable. It is owned exclusively by the Main Loop;
// nothing else touches idleSerial, pingOutstanding, or metadataScanIdle.
//
// A SCAN_IDLE only earns a fresh ping when no earlier ping is still
// awaiting its reply — otherwise, since the worker always emits SCAN_IDLE
// and the pending MAIN_IDLE echo together in one drain, a new ping issued
// while processing the SCAN_IDLE would bump idleSerial out from under the
// echo sitting right behind it in the same batch, and the round-trip
// would never resolve.
type quiescence struct {
	idleSerial       uint32
	pingOutstanding  bool
	metadataScanIdle bool
}

// prime opens the first quiescence round and returns its serial, which the
// caller sends to the worker as the initial MAIN_IDLE token (after the root
// SCANs), per spec.md §4.6 step 7.
func (q *quiescence) prime() uint32 {
	q.idleSerial++
	q.pingOutstanding = true
	return q.idleSerial
}

// onScanIdle handles a SCAN_IDLE arriving on to_fetch. It returns a fresh
// serial to ping the worker with only if the engine is not already marked
// idle and no earlier ping is still outstanding; otherwise there is
// nothing to do but wait.
func (q *quiescence) onScanIdle() (serial uint32, shouldPing bool) {
	if q.metadataScanIdle || q.pingOutstanding {
		return 0, false
	}
	q.idleSerial++
	q.pingOutstanding = true
	return q.idleSerial, true
}

// onMainIdleReply handles the worker's echoed MAIN_IDLE(serial). Only a
// reply matching the current outstanding ping (not a stale one from an
// earlier, since-invalidated round) advances quiescence.
func (q *quiescence) onMainIdleReply(serial uint32) {
	if q.pingOutstanding && serial == q.idleSerial {
		q.metadataScanIdle = true
		q.pingOutstanding = false
	}
}

// onFetchDrivenScan clears idle state: a SCAN was posted as a consequence
// of a fetch completing, so the engine is provably not globally finished.
// It also invalidates any ping still in flight, by bumping idleSerial, so
// that ping's eventual echo is recognized as stale rather than mistaken
// for confirmation of a round that no longer reflects reality.
func (q *quiescence) onFetchDrivenScan() {
	q.metadataScanIdle = false
	q.idleSerial++
	q.pingOutstanding = false
}

func (q *quiescence) isIdle() bool {
	return q.metadataScanIdle
}
