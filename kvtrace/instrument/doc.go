// Package instrument wraps operations with store-backed instrumentation.
//
// Every wrapper takes an operation plus the identity naming it and returns a
// new operation with the same signature, so wrappers compose by nesting:
//
//	store := instrument.CountCalls(st, "Cache.Store",
//	    instrument.CallHistory(st, "Cache.Store", rawStore))
//
// The keys written for an identity are:
//
//	<identity>          call counter
//	<identity>:inputs   encoded arguments, one entry per call
//	<identity>:outputs  encoded results, one entry per successful call
//
// Input and output entries are paired by position. That pairing is only
// reliable for a single caller per identity; concurrent callers may see
// their pairs interleaved.
package instrument
