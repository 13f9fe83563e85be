/*
Package child implements Child unit which is provisioned by Parent unit.

Child unit holds single value passed to its constructor and returns it
unchanged on every read. It never changes after the construction.

# Contract notifications

Child unit does not produce notifications.
*/
package child

/*
Contract storage model.

# Value
Field key: 'v'
Field value: stack item serialized by neo-go

The value passed to the constructor.
*/
