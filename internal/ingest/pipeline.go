// Package ingest turns a decoded upload body into canonical store rows and
// hands the syncable subset off to the fan-out synchronizer. Decode errors
// and per-record storage failures are reported as diagnostics; a partial
// upload is still accepted rather than rejected wholesale.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/formatter"
	"github.com/daniel-mekuria/zk-server/internal/repository"
	"github.com/daniel-mekuria/zk-server/internal/wire"
)

// Store aggregates every repository the pipeline writes to.
type Store struct {
	Terminals  repository.TerminalRepository
	Users      repository.UserRepository
	Biometrics repository.BiometricRepository
	Photos     repository.PhotoRepository
	WorkCodes  repository.WorkCodeRepository
	Messages   repository.MessageRepository
	IDCards    repository.IDCardRepository
	SyncLog    repository.SyncLogRepository
}

// Synchronizer is the fan-out boundary the pipeline hands syncable records
// to. internal/fanout.Synchronizer implements it; tests substitute a fake.
type Synchronizer interface {
	Fan(ctx context.Context, sourceSerial string, records []wire.Record) (int, error)
}

// Pipeline is constructed once and injected into the upload endpoint.
type Pipeline struct {
	store           Store
	fanout          Synchronizer
	propagatePhotos bool
	logger          *zap.Logger
}

func New(store Store, fanout Synchronizer, propagatePhotos bool, logger *zap.Logger) *Pipeline {
	return &Pipeline{store: store, fanout: fanout, propagatePhotos: propagatePhotos, logger: logger}
}

// Result summarizes one upload's outcome.
type Result struct {
	Accepted int
	Failures []string
	Fanned   int
}

// Ingest decodes body, applies every record to the canonical store, and
// forwards the syncable subset to the fan-out synchronizer, in the order
// the records appeared on the wire.
func (p *Pipeline) Ingest(ctx context.Context, sourceSerial string, body []byte) (Result, error) {
	records, decodeErrs := wire.DecodeUpload(body)
	res := Result{}
	for _, e := range decodeErrs {
		res.Failures = append(res.Failures, e.Error())
	}

	var syncable []wire.Record
	for _, rec := range records {
		if err := p.apply(ctx, sourceSerial, rec); err != nil {
			res.Failures = append(res.Failures, err.Error())
			p.logger.Warn("failed to apply uploaded record",
				zap.String("serial", sourceSerial),
				zap.String("tag", string(rec.Tag)),
				zap.Error(err),
			)
			continue
		}
		res.Accepted++
		syncableTag := wire.SyncableTags[rec.Tag] ||
			(p.propagatePhotos && (rec.Tag == wire.TagUserPic || rec.Tag == wire.TagBioPhoto))
		if syncableTag {
			syncable = append(syncable, rec)
		}
	}

	if len(syncable) > 0 && p.fanout != nil {
		n, err := p.fanout.Fan(ctx, sourceSerial, syncable)
		if err != nil {
			p.logger.Warn("fan-out failed for upload", zap.String("serial", sourceSerial), zap.Error(err))
		}
		res.Fanned = n
	}

	return res, nil
}

func (p *Pipeline) apply(ctx context.Context, sourceSN string, rec wire.Record) error {
	switch rec.Tag {
	case wire.TagUser:
		u := formatter.FromUserRecord(rec.User, sourceSN)
		if err := formatter.ValidateUser(u); err != nil {
			return fmt.Errorf("user %s: %w", rec.User.PIN, err)
		}
		if err := p.store.Users.Upsert(ctx, u); err != nil {
			return fmt.Errorf("store user %s: %w", u.PIN, err)
		}

	case wire.TagFP:
		t := formatter.FromFP(rec.FP, sourceSN)
		return p.upsertBiometric(ctx, t)

	case wire.TagFace:
		t := formatter.FromFace(rec.Face, sourceSN)
		return p.upsertBiometric(ctx, t)

	case wire.TagFVein:
		t := formatter.FromFVein(rec.FVein, sourceSN)
		return p.upsertBiometric(ctx, t)

	case wire.TagBioData:
		t := formatter.FromBioData(rec.BioData, sourceSN)
		return p.upsertBiometric(ctx, t)

	case wire.TagUserPic:
		photo := domain.Photo{
			Kind:     "user",
			PIN:      rec.UserPic.PIN,
			Filename: rec.UserPic.Filename,
			Size:     rec.UserPic.Size,
			Content:  []byte(rec.UserPic.Content),
			SourceSN: sourceSN,
		}
		if err := p.store.Photos.Upsert(ctx, photo); err != nil {
			return fmt.Errorf("store user photo %s: %w", photo.PIN, err)
		}

	case wire.TagBioPhoto:
		photo := domain.Photo{
			Kind:     "biophoto",
			PIN:      rec.BioPhoto.PIN,
			Type:     rec.BioPhoto.Type,
			Filename: rec.BioPhoto.Filename,
			Size:     rec.BioPhoto.Size,
			Content:  []byte(rec.BioPhoto.Content),
			SourceSN: sourceSN,
		}
		if err := p.store.Photos.Upsert(ctx, photo); err != nil {
			return fmt.Errorf("store comparison photo %s: %w", photo.PIN, err)
		}

	case wire.TagWorkCode:
		w := domain.WorkCode{PIN: rec.WorkCode.PIN, Code: rec.WorkCode.Code, Name: rec.WorkCode.Name, SourceSN: sourceSN}
		if err := p.store.WorkCodes.Upsert(ctx, w); err != nil {
			return fmt.Errorf("store work code %s/%s: %w", w.PIN, w.Code, err)
		}

	case wire.TagSMS:
		m := domain.ShortMessage{UID: rec.SMS.UID, Content: rec.SMS.Content, SourceSN: sourceSN}
		if err := p.store.Messages.UpsertSMS(ctx, m); err != nil {
			return fmt.Errorf("store short message %s: %w", m.UID, err)
		}

	case wire.TagUserSMS:
		m := domain.UserMessage{PIN: rec.UserSMS.PIN, UID: rec.UserSMS.UID, SourceSN: sourceSN}
		if err := p.store.Messages.UpsertUserSMS(ctx, m); err != nil {
			return fmt.Errorf("store user message association %s/%s: %w", m.PIN, m.UID, err)
		}

	case wire.TagIDCard:
		c := domain.IDCard{
			IDNumber: rec.IDCard.IDNumber,
			Fields:   rec.IDCard.Fields,
			FP1:      rec.IDCard.FP1,
			FP2:      rec.IDCard.FP2,
			Portrait: []byte(rec.IDCard.Portrait),
			SourceSN: sourceSN,
		}
		if err := p.store.IDCards.Upsert(ctx, c); err != nil {
			return fmt.Errorf("store id card %s: %w", c.IDNumber, err)
		}

	case wire.TagErrorLog:
		return p.store.SyncLog.Append(ctx, domain.SyncLogEntry{
			SourceSN:   sourceSN,
			RecordType: "ERRORLOG",
			RecordKey:  rec.ErrorLog.DataOrigin,
			Action:     rec.ErrorLog.DataOrigin + ":" + rec.ErrorLog.ErrMsg,
			Status:     "logged",
		})

	default:
		return fmt.Errorf("no store handler for tag %q", rec.Tag)
	}
	return nil
}

func (p *Pipeline) upsertBiometric(ctx context.Context, t domain.BiometricTemplate) error {
	if err := formatter.ValidateBiometric(t); err != nil {
		return fmt.Errorf("biometric %s/%s: %w", t.PIN, t.Type, err)
	}
	if err := p.store.Biometrics.Upsert(ctx, t); err != nil {
		return fmt.Errorf("store biometric %s/%s: %w", t.PIN, t.Type, err)
	}
	return nil
}
