package wire

import (
	"fmt"
	"strings"
)

// SplitLines splits an uploaded body into non-empty record lines, tolerating
// both LF and CRLF framing.
func SplitLines(body []byte) []string {
	normalized := strings.ReplaceAll(string(body), "\r\n", "\n")
	raw := strings.Split(normalized, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// splitTagParams splits "TAG params..." at the first ASCII space.
func splitTagParams(line string) (tag Tag, params string, ok bool) {
	i := strings.IndexByte(line, ' ')
	if i < 0 {
		return Tag(line), "", true
	}
	return Tag(line[:i]), line[i+1:], true
}

// DecodeUpload parses every record line in body into typed Records. Records
// with an unrecognized tag or unparseable params are reported as errors but
// do not stop the scan of subsequent lines — the ingest pipeline still takes
// a partial upload rather than rejecting the whole body over one bad line.
func DecodeUpload(body []byte) ([]Record, []error) {
	var records []Record
	var errs []error

	for _, line := range SplitLines(body) {
		tag, params, _ := splitTagParams(line)
		if !KnownTags[tag] {
			errs = append(errs, fmt.Errorf("unknown record tag %q", tag))
			continue
		}
		rec, err := decodeOne(tag, params)
		if err != nil {
			errs = append(errs, fmt.Errorf("tag %s: %w", tag, err))
			continue
		}
		records = append(records, rec)
	}

	return records, errs
}

func decodeOne(tag Tag, params string) (Record, error) {
	switch tag {
	case TagUser:
		f := ParseTabParams(params)
		return Record{Tag: tag, User: &UserRecord{
			PIN:        f["PIN"],
			Name:       f["Name"],
			Privilege:  atoiDefault(f["Pri"], 0),
			Password:   f["Passwd"],
			Card:       f["Card"],
			GroupID:    f["Grp"],
			TimeZone:   f["TZ"],
			VerifyMode: atoiDefault(f["Verify"], -1),
			ViceCard:   f["ViceCard"],
		}}, nil

	case TagFP:
		f := ParseTabParams(params)
		return Record{Tag: tag, FP: &FPRecord{
			PIN:      f["PIN"],
			FID:      atoiDefault(f["FID"], 0),
			Size:     atoiDefault(f["Size"], 0),
			Valid:    boolFromFlag(f["Valid"]),
			Template: f["TMP"],
		}}, nil

	case TagFace:
		f := ParseTabParams(params)
		return Record{Tag: tag, Face: &FaceRecord{
			PIN:      f["PIN"],
			FID:      atoiDefault(f["FID"], 0),
			Size:     atoiDefault(f["SIZE"], 0),
			Valid:    boolFromFlag(f["VALID"]),
			Template: f["TMP"],
		}}, nil

	case TagFVein:
		f := ParseTabParams(params)
		return Record{Tag: tag, FVein: &FVeinRecord{
			PIN:      f["Pin"],
			No:       atoiDefault(f["No"], 0),
			Index:    atoiDefault(f["Index"], 0),
			Valid:    boolFromFlag(f["Valid"]),
			Duress:   boolFromFlag(f["Duress"]),
			Template: f["Tmp"],
		}}, nil

	case TagBioData:
		f, fallback := ParseBioDataParams(params)
		return Record{Tag: tag, BioData: &BioDataRecord{
			PIN:               f["Pin"],
			No:                atoiDefault(f["No"], 0),
			Index:             atoiDefault(f["Index"], 0),
			Valid:             boolFromFlag(f["Valid"]),
			Duress:            boolFromFlag(f["Duress"]),
			Type:              atoiDefault(f["Type"], 0),
			MajorVer:          f["MajorVer"],
			MinorVer:          f["MinorVer"],
			Format:            f["Format"],
			Template:          f["Tmp"],
			UsedFallbackParse: fallback,
		}}, nil

	case TagUserPic:
		f := ParseTabParams(params)
		return Record{Tag: tag, UserPic: &UserPicRecord{
			PIN:      f["PIN"],
			Filename: f["FileName"],
			Size:     atoiDefault(f["Size"], 0),
			Content:  f["Content"],
		}}, nil

	case TagBioPhoto:
		f := ParseTabParams(params)
		return Record{Tag: tag, BioPhoto: &BioPhotoRecord{
			PIN:      f["PIN"],
			Type:     f["Type"],
			Filename: f["FileName"],
			Size:     atoiDefault(f["Size"], 0),
			Content:  f["Content"],
		}}, nil

	case TagWorkCode:
		f := ParseTabParams(params)
		return Record{Tag: tag, WorkCode: &WorkCodeRecord{
			PIN:  f["PIN"],
			Code: f["Code"],
			Name: f["Name"],
		}}, nil

	case TagSMS:
		f := ParseTabParams(params)
		return Record{Tag: tag, SMS: &SMSRecord{
			UID:     f["UID"],
			Content: f["Content"],
		}}, nil

	case TagUserSMS:
		f := ParseTabParams(params)
		return Record{Tag: tag, UserSMS: &UserSMSRecord{
			PIN: f["PIN"],
			UID: f["UID"],
		}}, nil

	case TagIDCard:
		f := ParseTabParams(params)
		fp1, fp2, portrait := f["FP1"], f["FP2"], f["Photo"]
		delete(f, "PIN")
		delete(f, "FP1")
		delete(f, "FP2")
		delete(f, "Photo")
		return Record{Tag: tag, IDCard: &IDCardRecord{
			IDNumber: f2(params, "PIN"),
			Fields:   f,
			FP1:      fp1,
			FP2:      fp2,
			Portrait: portrait,
		}}, nil

	case TagErrorLog:
		f := ParseTabParams(params)
		return Record{Tag: tag, ErrorLog: &ErrorLogRecord{
			DataOrigin: f["DataOrigin"],
			ErrMsg:     f["ErrMsg"],
		}}, nil
	}

	return Record{}, fmt.Errorf("no decoder for tag %q", tag)
}

// f2 re-extracts a single field after the caller has already mutated the
// parsed map (used for IDCARD, whose id number is deleted from Fields
// before the remaining demographic fields are kept).
func f2(params, key string) string {
	f := ParseTabParams(params)
	return f[key]
}
