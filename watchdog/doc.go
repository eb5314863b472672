// Package watchdog provides the recovery path of last resort.
//
// The controller feeds a [Feeder] once per loop iteration. [Software] is a
// host implementation: if it is not fed within its timeout, it invokes an
// expiry callback once, which in the simulator performs the equivalent of a
// hardware reset.
package watchdog
