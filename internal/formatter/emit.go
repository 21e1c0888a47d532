package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/wire"
)

// dataCommand builds a DATA-category payload and marks it idempotent: every
// DATA UPDATE/DELETE/QUERY payload is safe to retry or re-deliver because
// the store applies it as an upsert or a query, never an increment.
func dataCommand(verb, objKind, fields string) (domain.CommandCategory, string, bool) {
	payload := verb + " " + objKind
	if fields != "" {
		payload += " " + wire.RepairTabs(fields)
	}
	return domain.CategoryData, payload, true
}

// PutUser formats a USERINFO update command.
func PutUser(u domain.User) (domain.CommandCategory, string, bool, error) {
	if err := ValidateUser(u); err != nil {
		return "", "", false, err
	}
	fields := strings.Join([]string{
		"PIN=" + u.PIN,
		"Name=" + u.Name,
		"Pri=" + strconv.Itoa(u.Privilege),
		"Passwd=" + u.Password,
		"Card=" + u.Card,
		"Grp=" + u.GroupID,
		"TZ=" + u.TimeZone,
		"Verify=" + strconv.Itoa(u.VerifyMode),
		"ViceCard=" + u.ViceCard,
	}, "\t")
	cat, payload, idem := dataCommand("DATA UPDATE", "USERINFO", fields)
	return cat, payload, idem, nil
}

// DeleteUser formats a USERINFO delete command.
func DeleteUser(pin string) (domain.CommandCategory, string, bool, error) {
	if pin == "" {
		return "", "", false, fmt.Errorf("pin is empty")
	}
	cat, payload, idem := dataCommand("DATA DELETE", "USERINFO", "PIN="+pin)
	return cat, payload, idem, nil
}

// bioDataFields maps a BiometricTemplate onto the canonical BIODATA field
// map, in the order the wire codec already knows how to re-emit.
func bioDataFields(t domain.BiometricTemplate) map[string]string {
	return map[string]string{
		"Pin":      t.PIN,
		"No":       strconv.Itoa(t.Slot),
		"Index":    strconv.Itoa(t.Index),
		"Valid":    boolFlag(t.Valid),
		"Duress":   boolFlag(t.Duress),
		"Type":     strconv.Itoa(int(t.Type)),
		"MajorVer": t.MajorVer,
		"MinorVer": t.MinorVer,
		"Format":   t.Format,
		"Tmp":      t.Template,
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// PutBiometric formats the unified DATA UPDATE BIODATA command. Every
// legacy FP/FACE/FVEIN upload is translated to this shape before reaching
// the formatter (see translate.go); the formatter itself never emits the
// legacy dialects.
func PutBiometric(t domain.BiometricTemplate) (domain.CommandCategory, string, bool, error) {
	if err := ValidateBiometric(t); err != nil {
		return "", "", false, err
	}
	fields := wire.CanonicalizeBioData(bioDataFields(t))
	cat, payload, idem := dataCommand("DATA UPDATE", "BIODATA", fields)
	return cat, payload, idem, nil
}

// DeleteBiometric formats a DATA DELETE BIODATA command. typ and slot are
// optional narrowing filters; omitting both deletes every template for pin.
func DeleteBiometric(pin string, typ *domain.BiometricType, slot *int) (domain.CommandCategory, string, bool, error) {
	if pin == "" {
		return "", "", false, fmt.Errorf("pin is empty")
	}
	parts := []string{"Pin=" + pin}
	if typ != nil {
		parts = append(parts, "Type="+strconv.Itoa(int(*typ)))
		if slot != nil {
			parts = append(parts, "No="+strconv.Itoa(*slot))
		}
	}
	cat, payload, idem := dataCommand("DATA DELETE", "BIODATA", strings.Join(parts, "\t"))
	return cat, payload, idem, nil
}

// QueryBiometric formats a DATA QUERY BIODATA command. Note the PIN key is
// upper-case here, unlike every other BIODATA command — preserved to match
// the behaviour observed against target firmware (see DESIGN.md).
func QueryBiometric(typ domain.BiometricType, pin *string, slot *int) (domain.CommandCategory, string, bool, error) {
	if !typ.Valid() {
		return "", "", false, fmt.Errorf("biometric type %d is not in the enumeration", typ)
	}
	parts := []string{"Type=" + strconv.Itoa(int(typ))}
	if pin != nil {
		parts = append(parts, "PIN="+*pin)
		if slot != nil {
			parts = append(parts, "No="+strconv.Itoa(*slot))
		}
	}
	cat, payload, idem := dataCommand("DATA QUERY", "BIODATA", strings.Join(parts, "\t"))
	return cat, payload, idem, nil
}

// PutWorkCode formats a WORKCODE update command.
func PutWorkCode(w domain.WorkCode) (domain.CommandCategory, string, bool, error) {
	if w.PIN == "" {
		return "", "", false, fmt.Errorf("pin is empty")
	}
	fields := strings.Join([]string{"PIN=" + w.PIN, "Code=" + w.Code, "Name=" + w.Name}, "\t")
	cat, payload, idem := dataCommand("DATA UPDATE", "WORKCODE", fields)
	return cat, payload, idem, nil
}

// DeleteWorkCode formats a WORKCODE delete command.
func DeleteWorkCode(pin, code string) (domain.CommandCategory, string, bool, error) {
	if pin == "" {
		return "", "", false, fmt.Errorf("pin is empty")
	}
	cat, payload, idem := dataCommand("DATA DELETE", "WORKCODE", "PIN="+pin+"\tCode="+code)
	return cat, payload, idem, nil
}

// PutSMS formats a standalone short-message update command.
func PutSMS(m domain.ShortMessage) (domain.CommandCategory, string, bool, error) {
	if m.UID == "" {
		return "", "", false, fmt.Errorf("uid is empty")
	}
	cat, payload, idem := dataCommand("DATA UPDATE", "SMS", "UID="+m.UID+"\tContent="+m.Content)
	return cat, payload, idem, nil
}

// PutUserSMS formats a user/message association update command.
func PutUserSMS(m domain.UserMessage) (domain.CommandCategory, string, bool, error) {
	if m.PIN == "" || m.UID == "" {
		return "", "", false, fmt.Errorf("pin and uid are required")
	}
	cat, payload, idem := dataCommand("DATA UPDATE", "USER_SMS", "PIN="+m.PIN+"\tUID="+m.UID)
	return cat, payload, idem, nil
}

// PutIDCard formats an ID-card update command. The id number rides under
// the PIN key, matching the wire's upload-side oddity.
func PutIDCard(c domain.IDCard) (domain.CommandCategory, string, bool, error) {
	if c.IDNumber == "" {
		return "", "", false, fmt.Errorf("id number is empty")
	}
	parts := []string{"PIN=" + c.IDNumber}
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+c.Fields[k])
	}
	parts = append(parts, "FP1="+c.FP1, "FP2="+c.FP2, "Photo="+string(c.Portrait))
	cat, payload, idem := dataCommand("DATA UPDATE", "IDCARD", strings.Join(parts, "\t"))
	return cat, payload, idem, nil
}

// PutUserPic formats a user-photo update command. Only reachable when the
// deployment's photo-propagation switch is enabled (disabled by default).
func PutUserPic(p domain.Photo) (domain.CommandCategory, string, bool, error) {
	if p.PIN == "" {
		return "", "", false, fmt.Errorf("pin is empty")
	}
	fields := strings.Join([]string{
		"PIN=" + p.PIN,
		"FileName=" + p.Filename,
		"Size=" + strconv.Itoa(p.Size),
		"Content=" + string(p.Content),
	}, "\t")
	cat, payload, idem := dataCommand("DATA UPDATE", "USERPIC", fields)
	return cat, payload, idem, nil
}

// PutBioPhoto formats a comparison-photo update command. Only reachable
// when the deployment's photo-propagation switch is enabled.
func PutBioPhoto(p domain.Photo) (domain.CommandCategory, string, bool, error) {
	if p.PIN == "" {
		return "", "", false, fmt.Errorf("pin is empty")
	}
	fields := strings.Join([]string{
		"PIN=" + p.PIN,
		"Type=" + p.Type,
		"FileName=" + p.Filename,
		"Size=" + strconv.Itoa(p.Size),
		"Content=" + string(p.Content),
	}, "\t")
	cat, payload, idem := dataCommand("DATA UPDATE", "BIOPHOTO", fields)
	return cat, payload, idem, nil
}

// DeleteIDCard formats an ID-card delete command.
func DeleteIDCard(idNumber string) (domain.CommandCategory, string, bool, error) {
	if idNumber == "" {
		return "", "", false, fmt.Errorf("id number is empty")
	}
	cat, payload, idem := dataCommand("DATA DELETE", "IDCARD", "PIN="+idNumber)
	return cat, payload, idem, nil
}
