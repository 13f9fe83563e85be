/*
Package parent implements Parent unit which provisions Child units.

Parent unit creates Child units at deterministic addresses, endows each new
unit with a quarter of its own current balance and keeps handles of the
created units in named slots. Stored handles are used to forward reads to the
Child units.

Two slots are filled by the dedicated methods: 'constructor' slot is filled at
construction with value 1111, 'method' slot is filled by 'deploy' method with
value 9999. Arbitrary slots are filled by 'provision' and 'provisionNext'.

Salt of the new unit address is the version number (4 bytes, little-endian)
passed by the caller, so the same version can not be provisioned twice with
the same code. 'provisionNext' uses internal counter instead.

# Contract notifications

Provisioned notification. This notification is produced when a Child unit is
created and its handle is stored in the slot.

	Provisioned:
	  - name: slot
	    type: String
	  - name: address
	    type: Hash160
	  - name: code
	    type: Hash256
	  - name: endowment
	    type: Integer
*/
package parent

/*
Contract storage model.

# Handles
Mapping: slot name -> handle of the provisioned unit
Key prefix: 'h'
Key suffix: UTF-8 slot name
Value: 20-byte address followed by 32-byte code selector

# Nonce
Field key: 'n'
Field value: little-endian unsigned 64-bit integer

Salt counter of 'provisionNext' method.
*/
