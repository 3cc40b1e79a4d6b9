package androidattest

import "fmt"

// OsVersion is the Android OS version active when a key was generated, encoded as a single
// integer MMmmss (major*10000 + minor*100 + sub_minor) per the os_version KeyMint tag.
type OsVersion struct {
	Major    uint8
	Minor    uint8
	SubMinor uint8
}

// ErrInvalidOsVersion reports an encoded os_version integer whose major component is out of
// the representable 0-99 range.
type ErrInvalidOsVersion int32

func (e ErrInvalidOsVersion) Error() string {
	return fmt.Sprintf("not a valid OsVersion: %d", int32(e))
}

// ParseOsVersion decodes the os_version tag's integer encoding.
func ParseOsVersion(v int32) (OsVersion, error) {
	major := v / 10000
	if major >= 100 || major < 0 {
		return OsVersion{}, ErrInvalidOsVersion(v)
	}
	minor := (v / 100) % 100
	subMinor := v % 100

	return OsVersion{Major: uint8(major), Minor: uint8(minor), SubMinor: uint8(subMinor)}, nil
}

// PatchLevel is a security patch level, encoded either as YYYYMM or YYYYMMDD depending on the
// KeyMint tag (os_patch_level is YYYYMM; vendor/boot_patch_level are YYYYMMDD).
//
// Month and day are preserved exactly as decoded, including out-of-range values like month 13
// or day 32: whether such a value is acceptable is a policy decision left to the caller
// (§9 "the parser layer never rejects an out-of-range patch level month or day; that judgment
// belongs to whatever policy consumes KeyAttestation").
type PatchLevel struct {
	Year  uint16
	Month uint8
	Day   *uint8
}

// ErrInvalidPatchLevel reports an encoded patch-level integer that is nonzero and below 10000,
// or above 100000000.
type ErrInvalidPatchLevel int32

func (e ErrInvalidPatchLevel) Error() string {
	return fmt.Sprintf("not a valid PatchLevel: %d", int32(e))
}

// ParsePatchLevel decodes a patch-level integer in either the YYYYMM or YYYYMMDD form.
func ParsePatchLevel(v int32) (PatchLevel, error) {
	if v == 0 {
		return PatchLevel{}, nil
	}
	if v < 10_000 {
		return PatchLevel{}, ErrInvalidPatchLevel(v)
	}

	// YYYYMM is a 6-digit integer; YYYYMMDD is an 8-digit integer. Both share the same
	// year/month derivation once the trailing day digits (if any) are peeled off.
	rest := v
	if rest >= 1_000_000 {
		day := uint8(rest % 100)
		rest /= 100
		month := uint8(rest % 100)
		year := uint16(rest / 100)
		if v > 100_000_000 {
			return PatchLevel{}, ErrInvalidPatchLevel(v)
		}
		return PatchLevel{Year: year, Month: month, Day: &day}, nil
	}

	month := uint8(rest % 100)
	year := uint16(rest / 100)
	return PatchLevel{Year: year, Month: month, Day: nil}, nil
}
