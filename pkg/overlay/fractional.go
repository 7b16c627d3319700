package overlay

// Fractional position keys for List. Keys are byte strings drawn from a
// dense ordered set: digits are bytes in [1, 254], reserving 0x00 as an
// implicit "less than everything" bound and 0xFF as an implicit "greater
// than everything" bound so append/prepend never need a real neighbor.
//
// Given neighbors a < b, midpointKey picks the shortest digit sequence c
// with a < c < b by walking both keys digit-by-digit: while the digits
// agree (or are adjacent), the shared/adjacent digit is carried into c and
// the search continues one digit deeper; as soon as the digits leave a gap
// greater than one, the midpoint of that gap becomes c's final digit. This
// keeps keys short for sparse insertions and only grows them when two
// neighbors are already adjacent integers.
//
// Two clients inserting into the exact same gap concurrently would
// otherwise compute the identical c. insertKey breaks that tie by
// appending a suffix derived from the inserting client's id; because the
// tie only ever happens at the differing digit already chosen by
// midpointKey, any suffix appended afterward cannot change whether c
// compares less than b or greater than a (byte comparison is decided at
// the first differing byte). The suffix turns each client id byte into two
// digits (its high and low nibble, each shifted into 1..16); that encoding
// is injective and order-preserving, so distinct client ids get distinct
// suffixes and the relative order of colliding inserts matches the
// lexicographic order of the client ids that made them.
const (
	minDigit = 1
	maxDigit = 254
)

func midpointKey(a, b []byte) []byte {
	var out []byte
	bBound := b != nil // whether b still constrains the next digit
	for i := 0; ; i++ {
		lo := 0
		if i < len(a) {
			lo = int(a[i])
		}
		hi := 255
		if bBound {
			if i < len(b) {
				hi = int(b[i])
			} else {
				hi = 0 // unreachable for well-formed a<b input
			}
		}
		if hi-lo > 1 {
			out = append(out, byte(lo+(hi-lo)/2))
			return out
		}
		out = append(out, byte(lo))
		if hi != lo {
			bBound = false
		}
		if i > 64 { // pathological safety valve; never hit by real usage
			out = append(out, maxDigit/2)
			return out
		}
	}
}

// before returns a key less than every key in a list whose smallest
// existing key is `first` (nil if the list is empty).
func before(first []byte) []byte {
	return midpointKey(nil, first)
}

// after returns a key greater than every key in a list whose largest
// existing key is `last` (nil if the list is empty).
func after(last []byte) []byte {
	return midpointKey(last, nil)
}

// between returns a key strictly between a and b.
func between(a, b []byte) []byte {
	return midpointKey(a, b)
}

// tiebreak appends a deterministic suffix derived from clientID so that
// two clients inserting into the same gap land on distinct keys, ordered
// by the lexicographic order of clientID.
func tiebreak(key, clientID []byte) []byte {
	if len(clientID) == 0 {
		return key
	}
	suffix := make([]byte, 0, 2*len(clientID))
	for _, b := range clientID {
		// Two digits per byte, each in 1..16: injective and order-preserving.
		suffix = append(suffix, 1+b>>4, 1+b&0x0F)
	}
	out := make([]byte, 0, len(key)+len(suffix))
	out = append(out, key...)
	out = append(out, suffix...)
	return out
}
