/*
Package host provides in-process execution environment for units.

Host keeps registry of executable code, resource balances, unit records and
unit storages. Units are created at deterministic addresses, see
DeriveAddress. Every top-level operation (Deploy, Invoke, Mint, Import) is
executed atomically: either all its effects are committed, or none.

# Store layout

Host state is kept in the neo-go storage.Store under the following keys:

	0x01 | address       -> unit record (serialized stack item)
	0x02 | address       -> balance (big integer bytes)
	0x03 | address | key -> unit storage item
	0x04                 -> height (number of committed operations)

Code is not persisted: after reopening the store, all code should be
registered again via RegisterCode.
*/
package host
