// Package codec implements the self-describing binary framing used by every
// credkeep store file.
//
// A stream is a sequence of records. A record is a sequence of groups and is
// closed by a record marker (or by the end of the stream). A group is a group
// marker followed by a one-byte tag and then either units or nested records.
// A unit is a unit marker, a one-byte tag and a payload: a 4-byte
// little-endian length followed by that many bytes, or a 4-byte little-endian
// signed integer. The unit tag decides which payload follows; the stream
// itself does not say.
//
// Lists of records inside a group are closed by one extra record marker
// after the last element's own marker.
package codec

import "errors"

// Control bytes. All three sit outside the printable range.
const (
	UnitMarker   byte = 0x1F
	GroupMarker  byte = 0x1D
	RecordMarker byte = 0x1E
)

const lengthSize = 4

// MaxBlockLength bounds a single length-prefixed payload so a corrupt length
// cannot force a huge allocation.
const MaxBlockLength = 1 << 20

// ErrMalformed is reported by Reader.Err once the stream stopped making sense.
var ErrMalformed = errors.New("codec: malformed input")
