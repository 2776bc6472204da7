package engine

import "fmt"

// Version selects which event schema a deployment of the settlement
// engine emits. The two schemas differ in how fills are announced and
// whether events carry amount commitments.
type Version uint8

const (
	// V6 emits per-bucket BucketFilled notifications and amount
	// commitments on every user event.
	V6 Version = 6
	// V8 emits bare user events plus RangeActivated fill hints;
	// claimability is confirmed by point reads.
	V8 Version = 8
)

func (v Version) String() string {
	return fmt.Sprintf("v%d", uint8(v))
}

// ParseVersion converts a config string ("v6", "6", "v8", "8").
func ParseVersion(input string) (Version, error) {
	switch input {
	case "v6", "6":
		return V6, nil
	case "v8", "8":
		return V8, nil
	default:
		return 0, fmt.Errorf("unsupported engine version: %s", input)
	}
}

// Valid reports whether the version is a known schema.
func (v Version) Valid() bool {
	return v == V6 || v == V8
}
