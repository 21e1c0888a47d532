package domain

// BiometricType is the authoritative biometric-family enumeration shared by
// the wire codec, the store gateway, and the command formatter.
type BiometricType int

const (
	BiometricFingerprint        BiometricType = 1
	BiometricFace               BiometricType = 2
	BiometricVoiceprint         BiometricType = 3
	BiometricIris               BiometricType = 4
	BiometricRetina             BiometricType = 5
	BiometricPalmprint          BiometricType = 6
	BiometricFingerVein         BiometricType = 7
	BiometricPalm               BiometricType = 8
	BiometricVisibleLightFace   BiometricType = 9
)

func (t BiometricType) String() string {
	switch t {
	case BiometricFingerprint:
		return "fingerprint"
	case BiometricFace:
		return "face"
	case BiometricVoiceprint:
		return "voiceprint"
	case BiometricIris:
		return "iris"
	case BiometricRetina:
		return "retina"
	case BiometricPalmprint:
		return "palmprint"
	case BiometricFingerVein:
		return "finger-vein"
	case BiometricPalm:
		return "palm"
	case BiometricVisibleLightFace:
		return "visible-light-face"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the nine enumerated biometric families.
func (t BiometricType) Valid() bool {
	return t >= BiometricFingerprint && t <= BiometricVisibleLightFace
}

// BiometricTemplate is the canonical, unified biometric row keyed by
// (PIN, Type, Index, Slot). Legacy FP/FACE/FVEIN inbound records are
// translated into this shape at the ingest boundary.
type BiometricTemplate struct {
	PIN        string        `db:"pin"`
	Type       BiometricType `db:"type"`
	Slot       int           `db:"slot"` // "No" on the wire
	Index      int           `db:"index"`
	Valid      bool          `db:"valid"`
	Duress     bool          `db:"duress"`
	MajorVer   string        `db:"major_ver"`
	MinorVer   string        `db:"minor_ver"`
	Format     string        `db:"format"` // passed through uninterpreted, see DESIGN.md
	Template   string        `db:"template"`
	SourceSN   string        `db:"source_sn"`
}
