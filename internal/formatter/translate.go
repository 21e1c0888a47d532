package formatter

import (
	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/wire"
)

// FromFP unifies a legacy FP record into the canonical BiometricTemplate
// shape. FID becomes Slot; Index is always 0 for fingerprints.
func FromFP(r *wire.FPRecord, sourceSN string) domain.BiometricTemplate {
	return domain.BiometricTemplate{
		PIN:      r.PIN,
		Type:     domain.BiometricFingerprint,
		Slot:     r.FID,
		Index:    0,
		Valid:    r.Valid,
		Template: r.Template,
		SourceSN: sourceSN,
	}
}

// FromFace unifies a legacy FACE record. A legacy terminal only ever
// uploads one face per user, so Slot is forced to 0 regardless of FID.
func FromFace(r *wire.FaceRecord, sourceSN string) domain.BiometricTemplate {
	return domain.BiometricTemplate{
		PIN:      r.PIN,
		Type:     domain.BiometricFace,
		Slot:     0,
		Index:    0,
		Valid:    r.Valid,
		Template: r.Template,
		SourceSN: sourceSN,
	}
}

// FromFVein unifies a legacy FVEIN record.
func FromFVein(r *wire.FVeinRecord, sourceSN string) domain.BiometricTemplate {
	return domain.BiometricTemplate{
		PIN:      r.PIN,
		Type:     domain.BiometricFingerVein,
		Slot:     r.No,
		Index:    r.Index,
		Valid:    r.Valid,
		Duress:   r.Duress,
		Template: r.Template,
		SourceSN: sourceSN,
	}
}

// FromBioData carries an already-unified BIODATA upload straight through.
func FromBioData(r *wire.BioDataRecord, sourceSN string) domain.BiometricTemplate {
	return domain.BiometricTemplate{
		PIN:      r.PIN,
		Type:     domain.BiometricType(r.Type),
		Slot:     r.No,
		Index:    r.Index,
		Valid:    r.Valid,
		Duress:   r.Duress,
		MajorVer: r.MajorVer,
		MinorVer: r.MinorVer,
		Format:   r.Format,
		Template: r.Template,
		SourceSN: sourceSN,
	}
}

// FromUserRecord converts an uploaded USER record into the canonical User
// row, applying the protocol's documented defaults for omitted fields.
func FromUserRecord(r *wire.UserRecord, sourceSN string) domain.User {
	u := domain.User{
		PIN:        r.PIN,
		Name:       r.Name,
		Privilege:  r.Privilege,
		Password:   r.Password,
		Card:       r.Card,
		GroupID:    r.GroupID,
		TimeZone:   r.TimeZone,
		VerifyMode: r.VerifyMode,
		ViceCard:   r.ViceCard,
		SourceSN:   sourceSN,
	}
	if u.TimeZone == "" {
		u.TimeZone = domain.DefaultTimeZone
	}
	return u
}
