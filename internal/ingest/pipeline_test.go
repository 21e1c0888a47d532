package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/wire"
)

type fakeUsers struct {
	upserted []domain.User
}

func (f *fakeUsers) Upsert(ctx context.Context, u domain.User) error {
	f.upserted = append(f.upserted, u)
	return nil
}
func (f *fakeUsers) Get(ctx context.Context, pin string) (*domain.User, error)          { return nil, nil }
func (f *fakeUsers) Delete(ctx context.Context, pin string) error                       { return nil }
func (f *fakeUsers) ListBySource(ctx context.Context, sn string) ([]domain.User, error) { return nil, nil }

type fakeBiometrics struct {
	upserted []domain.BiometricTemplate
}

func (f *fakeBiometrics) Upsert(ctx context.Context, t domain.BiometricTemplate) error {
	f.upserted = append(f.upserted, t)
	return nil
}
func (f *fakeBiometrics) Delete(ctx context.Context, pin string, typ *domain.BiometricType, slot *int) error {
	return nil
}
func (f *fakeBiometrics) ListByPIN(ctx context.Context, pin string) ([]domain.BiometricTemplate, error) {
	return nil, nil
}
func (f *fakeBiometrics) ListBySource(ctx context.Context, sn string) ([]domain.BiometricTemplate, error) {
	return nil, nil
}

type fakePhotos struct{ upserted []domain.Photo }

func (f *fakePhotos) Upsert(ctx context.Context, p domain.Photo) error {
	f.upserted = append(f.upserted, p)
	return nil
}
func (f *fakePhotos) Delete(ctx context.Context, kind, pin, typ string) error { return nil }
func (f *fakePhotos) ListBySource(ctx context.Context, sn string) ([]domain.Photo, error) {
	return nil, nil
}

type fakeWorkCodes struct{ upserted []domain.WorkCode }

func (f *fakeWorkCodes) Upsert(ctx context.Context, w domain.WorkCode) error {
	f.upserted = append(f.upserted, w)
	return nil
}
func (f *fakeWorkCodes) Delete(ctx context.Context, pin, code string) error { return nil }
func (f *fakeWorkCodes) ListBySource(ctx context.Context, sn string) ([]domain.WorkCode, error) {
	return nil, nil
}

type fakeMessages struct {
	sms     []domain.ShortMessage
	userSMS []domain.UserMessage
}

func (f *fakeMessages) UpsertSMS(ctx context.Context, m domain.ShortMessage) error {
	f.sms = append(f.sms, m)
	return nil
}
func (f *fakeMessages) UpsertUserSMS(ctx context.Context, m domain.UserMessage) error {
	f.userSMS = append(f.userSMS, m)
	return nil
}
func (f *fakeMessages) DeleteSMS(ctx context.Context, uid string) error { return nil }

type fakeIDCards struct{ upserted []domain.IDCard }

func (f *fakeIDCards) Upsert(ctx context.Context, c domain.IDCard) error {
	f.upserted = append(f.upserted, c)
	return nil
}
func (f *fakeIDCards) Delete(ctx context.Context, idNumber string) error { return nil }
func (f *fakeIDCards) ListBySource(ctx context.Context, sn string) ([]domain.IDCard, error) {
	return nil, nil
}

type fakeSyncLog struct{ entries []domain.SyncLogEntry }

func (f *fakeSyncLog) Append(ctx context.Context, e domain.SyncLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fakeFanout struct {
	calledWith []wire.Record
	fanned     int
}

func (f *fakeFanout) Fan(ctx context.Context, sourceSerial string, records []wire.Record) (int, error) {
	f.calledWith = records
	return f.fanned, nil
}

func newTestStore() (Store, *fakeUsers, *fakeBiometrics, *fakePhotos, *fakeWorkCodes, *fakeMessages, *fakeIDCards, *fakeSyncLog) {
	u, b, ph, w, m, idc, sl := &fakeUsers{}, &fakeBiometrics{}, &fakePhotos{}, &fakeWorkCodes{}, &fakeMessages{}, &fakeIDCards{}, &fakeSyncLog{}
	return Store{
		Users:      u,
		Biometrics: b,
		Photos:     ph,
		WorkCodes:  w,
		Messages:   m,
		IDCards:    idc,
		SyncLog:    sl,
	}, u, b, ph, w, m, idc, sl
}

func TestIngest_UserRecordStored(t *testing.T) {
	store, users, _, _, _, _, _, _ := newTestStore()
	fo := &fakeFanout{}
	p := New(store, fo, false, zap.NewNop())

	body := []byte("USER PIN=1\tName=Alice\tPri=0\n")
	res, err := p.Ingest(context.Background(), "A01", body)
	require.NoError(t, err)
	require.Equal(t, 1, res.Accepted)
	require.Len(t, users.upserted, 1)
	require.Equal(t, "1", users.upserted[0].PIN)
	require.Equal(t, domain.DefaultTimeZone, users.upserted[0].TimeZone)
	require.Len(t, fo.calledWith, 1)
}

func TestIngest_FPRecordUnifiedIntoBiometrics(t *testing.T) {
	store, _, bios, _, _, _, _, _ := newTestStore()
	fo := &fakeFanout{}
	p := New(store, fo, false, zap.NewNop())

	body := []byte("FP PIN=1\tFID=3\tSize=512\tValid=1\tTMP=YWJjMTIz\n")
	res, err := p.Ingest(context.Background(), "A01", body)
	require.NoError(t, err)
	require.Equal(t, 1, res.Accepted)
	require.Len(t, bios.upserted, 1)
	require.Equal(t, domain.BiometricFingerprint, bios.upserted[0].Type)
	require.Equal(t, 3, bios.upserted[0].Slot)
}

func TestIngest_ErrorLogAppendedNotFanned(t *testing.T) {
	store, _, _, _, _, _, _, syncLog := newTestStore()
	fo := &fakeFanout{}
	p := New(store, fo, false, zap.NewNop())

	body := []byte("ERRORLOG DataOrigin=ATTLOG\tErrMsg=write failed\n")
	res, err := p.Ingest(context.Background(), "A01", body)
	require.NoError(t, err)
	require.Equal(t, 1, res.Accepted)
	require.Len(t, syncLog.entries, 1)
	require.Equal(t, "logged", syncLog.entries[0].Status)
	require.Empty(t, fo.calledWith)
}

func TestIngest_InvalidBiometricRejectedButUploadContinues(t *testing.T) {
	store, users, bios, _, _, _, _, _ := newTestStore()
	fo := &fakeFanout{}
	p := New(store, fo, false, zap.NewNop())

	body := []byte("FP PIN=1\tFID=3\tTMP=\nUSER PIN=2\tName=Bob\n")
	res, err := p.Ingest(context.Background(), "A01", body)
	require.NoError(t, err)
	require.Equal(t, 1, res.Accepted)
	require.Len(t, res.Failures, 1)
	require.Empty(t, bios.upserted)
	require.Len(t, users.upserted, 1)
}

func TestIngest_UnknownTagReportedAsFailure(t *testing.T) {
	store, _, _, _, _, _, _, _ := newTestStore()
	fo := &fakeFanout{}
	p := New(store, fo, false, zap.NewNop())

	body := []byte("BOGUS PIN=1\n")
	res, err := p.Ingest(context.Background(), "A01", body)
	require.NoError(t, err)
	require.Equal(t, 0, res.Accepted)
	require.Len(t, res.Failures, 1)
}
