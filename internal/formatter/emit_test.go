package formatter

import (
	"strings"
	"testing"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

func TestPutUser(t *testing.T) {
	u := domain.User{PIN: "1001", Name: "Alice", GroupID: "1", TimeZone: "0000000000000000", VerifyMode: -1}
	cat, payload, idem, err := PutUser(u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat != domain.CategoryData || !idem {
		t.Errorf("unexpected category/idempotent: %v %v", cat, idem)
	}
	want := "DATA UPDATE USERINFO PIN=1001\tName=Alice\tPri=0\tPasswd=\tCard=\tGrp=1\tTZ=0000000000000000\tVerify=-1\tViceCard="
	if payload != want {
		t.Errorf("payload = %q, want %q", payload, want)
	}
}

func TestPutUser_EmptyPIN(t *testing.T) {
	if _, _, _, err := PutUser(domain.User{}); err == nil {
		t.Error("expected error for empty pin")
	}
}

func TestPutBiometric_Fingerprint(t *testing.T) {
	tpl := domain.BiometricTemplate{
		PIN: "1001", Type: domain.BiometricFingerprint, Slot: 3, Index: 0,
		Valid: true, Format: "ZK", Template: "AAAA",
	}
	_, payload, idem, err := PutBiometric(tpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !idem {
		t.Error("expected idempotent command")
	}
	want := "DATA UPDATE BIODATA Pin=1001\tNo=3\tIndex=0\tValid=1\tDuress=0\tType=1\tMajorVer=\tMinorVer=\tFormat=ZK\tTmp=AAAA"
	if payload != want {
		t.Errorf("payload = %q, want %q", payload, want)
	}
	if strings.Count(payload, "\t") != 9 {
		t.Errorf("expected 9 tabs, got %d", strings.Count(payload, "\t"))
	}
}

func TestPutBiometric_InvalidTemplate(t *testing.T) {
	tpl := domain.BiometricTemplate{PIN: "1001", Type: domain.BiometricFingerprint, Template: "not base64!"}
	if _, _, _, err := PutBiometric(tpl); err == nil {
		t.Error("expected validation error for malformed template")
	}
}

func TestPutBiometric_FingerprintSlotOutOfRange(t *testing.T) {
	tpl := domain.BiometricTemplate{PIN: "1001", Type: domain.BiometricFingerprint, Slot: 10, Template: "AAAA"}
	if _, _, _, err := PutBiometric(tpl); err == nil {
		t.Error("expected validation error for out-of-range fingerprint slot")
	}
}

func TestPutBiometric_FaceSlotMustBeZero(t *testing.T) {
	tpl := domain.BiometricTemplate{PIN: "1001", Type: domain.BiometricFace, Slot: 1, Template: "AAAA"}
	if _, _, _, err := PutBiometric(tpl); err == nil {
		t.Error("expected validation error for nonzero face slot")
	}
}

func TestDeleteBiometric_PinOnly(t *testing.T) {
	_, payload, _, err := DeleteBiometric("1001", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "DATA DELETE BIODATA Pin=1001" {
		t.Errorf("payload = %q", payload)
	}
}

func TestDeleteBiometric_TypeAndSlot(t *testing.T) {
	typ := domain.BiometricFingerprint
	slot := 3
	_, payload, _, err := DeleteBiometric("1001", &typ, &slot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "DATA DELETE BIODATA Pin=1001\tType=1\tNo=3" {
		t.Errorf("payload = %q", payload)
	}
}

func TestQueryBiometric_UsesUpperPIN(t *testing.T) {
	pin := "1001"
	_, payload, _, err := QueryBiometric(domain.BiometricFingerprint, &pin, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "DATA QUERY BIODATA Type=1\tPIN=1001" {
		t.Errorf("payload = %q", payload)
	}
}

func TestPutBiometric_NumericFormatPassthrough(t *testing.T) {
	tpl := domain.BiometricTemplate{PIN: "1001", Type: domain.BiometricFace, Format: "0", Template: "CCCC"}
	_, payload, _, err := PutBiometric(tpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(payload, "Format=0") {
		t.Errorf("expected numeric Format passthrough, got %q", payload)
	}
}

func TestDeleteUser(t *testing.T) {
	_, payload, idem, err := DeleteUser("1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !idem || payload != "DATA DELETE USERINFO PIN=1001" {
		t.Errorf("unexpected result: %q idem=%v", payload, idem)
	}
}
