/*
Package dump provides I/O operations for collected states of the host units.

Dumps allow to reproduce host state elsewhere: for example, to examine units
provisioned in some environment, or to start tests from a prepared state. The
package works with dumps stored in the file system using human-readable
encoding.
*/
package dump
