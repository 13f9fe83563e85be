/*
Package interop defines the vocabulary shared by unit implementations and the
host executing them.

Units are Go implementations of Contract. The host passes each executing unit
a Runtime which exposes the narrow set of host services a unit may rely on:
balance lookup, deterministic address derivation, instantiation of new units,
resolution of stored handles into callable references, private storage and
notifications.

Units never address each other directly. A unit provisioned by another one is
identified by a Handle (address and code selector pair) which is an ordinary
value that can be persisted and resolved again at any later time.
*/
package interop
