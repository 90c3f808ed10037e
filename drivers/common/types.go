// Package common contains definitions of fundamental types and functions used
// by the volume drivers.
package common

// BlockID is a zero-based block index into a stream, i.e. a logical block
// address.
type BlockID uint

// ClusterID is a cluster number as stored in an allocation table.
type ClusterID uint
