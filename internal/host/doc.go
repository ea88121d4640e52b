// Package host defines the types and error taxonomy shared by every
// component that drives the external 3D host: operator identifiers, compute
// device descriptions, and the capability surface probed once per worker.
//
// The concrete transport lives in the bridge subpackage; components accept
// their own narrow interfaces so tests can substitute fakes.
package host
