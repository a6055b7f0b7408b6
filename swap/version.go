package swap

// Version is the script generation of a swap.
type Version uint8

const (
	// VersionLegacy refers to swaps locked by a plain HTLC script hash
	// output.
	VersionLegacy Version = iota

	// VersionTaproot refers to swaps locked by a Taproot output with a
	// MuSig2 aggregated key path and claim/refund script leaves.
	VersionTaproot
)

// String returns the string value of the version.
func (v Version) String() string {
	switch v {
	case VersionLegacy:
		return "Legacy"
	case VersionTaproot:
		return "Taproot"
	default:
		return "Unknown"
	}
}
