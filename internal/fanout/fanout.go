// Package fanout translates one terminal's uploaded records into the
// unified outbound dialect and enqueues them on every other active
// terminal's command queue. It is best-effort: one peer's enqueue
// failure never stops the remaining peers or the remaining records.
package fanout

import (
	"context"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/formatter"
	"github.com/daniel-mekuria/zk-server/internal/repository"
	"github.com/daniel-mekuria/zk-server/internal/wire"
)

// PeerLister resolves the set of terminals a source's records should fan
// out to. internal/registry.Registry implements it.
type PeerLister interface {
	ActivePeers(ctx context.Context, sourceSerial string) ([]domain.Terminal, error)
}

// Enqueuer is the command-queue boundary the synchronizer writes through.
// internal/queue.Queue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, serial string, category domain.CommandCategory, payload string, idempotent bool) (string, error)
}

// Synchronizer fans syncable wire records out to every active peer of the
// uploading terminal.
type Synchronizer struct {
	peers           PeerLister
	queue           Enqueuer
	syncLog         repository.SyncLogRepository
	propagatePhotos bool
	logger          *zap.Logger
}

func New(peers PeerLister, queue Enqueuer, syncLog repository.SyncLogRepository, propagatePhotos bool, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{peers: peers, queue: queue, syncLog: syncLog, propagatePhotos: propagatePhotos, logger: logger}
}

// translated is one record's outbound form, or carries err when the record's
// tag has no fan-out translation (shouldn't happen for SyncableTags, but a
// store-gateway-only record slipping through is handled gracefully).
type translated struct {
	recordType string
	recordKey  string
	category   domain.CommandCategory
	payload    string
	idempotent bool
	err        error
}

// Fan translates every record once, then enqueues each translation onto
// every active peer, preserving the records' original order per peer.
func (s *Synchronizer) Fan(ctx context.Context, sourceSerial string, records []wire.Record) (int, error) {
	peers, err := s.peers.ActivePeers(ctx, sourceSerial)
	if err != nil {
		return 0, err
	}
	if len(peers) == 0 {
		return 0, nil
	}

	translations := make([]translated, 0, len(records))
	for _, rec := range records {
		if (rec.Tag == wire.TagUserPic || rec.Tag == wire.TagBioPhoto) && !s.propagatePhotos {
			continue
		}
		translations = append(translations, translate(rec, sourceSerial))
	}

	var queued int
	for _, peer := range peers {
		for _, tr := range translations {
			s.deliver(ctx, sourceSerial, peer.Serial, tr)
			if tr.err == nil {
				queued++
			}
		}
	}
	return queued, nil
}

func (s *Synchronizer) deliver(ctx context.Context, source, target string, tr translated) {
	entry := domain.SyncLogEntry{
		SourceSN:   source,
		TargetSN:   target,
		RecordType: tr.recordType,
		RecordKey:  tr.recordKey,
	}
	if tr.err != nil {
		entry.Action = "skip"
		entry.Status = "skipped"
		entry.Reason = tr.err.Error()
		s.logAppend(ctx, entry)
		return
	}

	id, err := s.queue.Enqueue(ctx, target, tr.category, tr.payload, tr.idempotent)
	if err != nil {
		entry.Action = "enqueue"
		entry.Status = "skipped"
		entry.Reason = err.Error()
		s.logger.Warn("fan-out enqueue failed",
			zap.String("source", source), zap.String("target", target), zap.Error(err))
		s.logAppend(ctx, entry)
		return
	}
	entry.Action = "enqueue"
	entry.Status = "queued"
	entry.RecordKey = id
	s.logAppend(ctx, entry)
}

func (s *Synchronizer) logAppend(ctx context.Context, e domain.SyncLogEntry) {
	if s.syncLog == nil {
		return
	}
	if err := s.syncLog.Append(ctx, e); err != nil {
		s.logger.Warn("failed to append sync log entry", zap.Error(err))
	}
}

func translate(rec wire.Record, sourceSerial string) translated {
	switch rec.Tag {
	case wire.TagUser:
		u := formatter.FromUserRecord(rec.User, sourceSerial)
		cat, payload, idem, err := formatter.PutUser(u)
		return translated{recordType: "USERINFO", recordKey: u.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagFP:
		t := formatter.FromFP(rec.FP, sourceSerial)
		cat, payload, idem, err := formatter.PutBiometric(t)
		return translated{recordType: "BIODATA", recordKey: t.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagFace:
		t := formatter.FromFace(rec.Face, sourceSerial)
		cat, payload, idem, err := formatter.PutBiometric(t)
		return translated{recordType: "BIODATA", recordKey: t.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagFVein:
		t := formatter.FromFVein(rec.FVein, sourceSerial)
		cat, payload, idem, err := formatter.PutBiometric(t)
		return translated{recordType: "BIODATA", recordKey: t.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagBioData:
		t := formatter.FromBioData(rec.BioData, sourceSerial)
		cat, payload, idem, err := formatter.PutBiometric(t)
		return translated{recordType: "BIODATA", recordKey: t.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagWorkCode:
		w := domain.WorkCode{PIN: rec.WorkCode.PIN, Code: rec.WorkCode.Code, Name: rec.WorkCode.Name, SourceSN: sourceSerial}
		cat, payload, idem, err := formatter.PutWorkCode(w)
		return translated{recordType: "WORKCODE", recordKey: w.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagSMS:
		m := domain.ShortMessage{UID: rec.SMS.UID, Content: rec.SMS.Content, SourceSN: sourceSerial}
		cat, payload, idem, err := formatter.PutSMS(m)
		return translated{recordType: "SMS", recordKey: m.UID, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagUserSMS:
		m := domain.UserMessage{PIN: rec.UserSMS.PIN, UID: rec.UserSMS.UID, SourceSN: sourceSerial}
		cat, payload, idem, err := formatter.PutUserSMS(m)
		return translated{recordType: "USER_SMS", recordKey: m.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagUserPic:
		p := domain.Photo{Kind: "user", PIN: rec.UserPic.PIN, Filename: rec.UserPic.Filename, Size: rec.UserPic.Size, Content: []byte(rec.UserPic.Content), SourceSN: sourceSerial}
		cat, payload, idem, err := formatter.PutUserPic(p)
		return translated{recordType: "USERPIC", recordKey: p.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagBioPhoto:
		p := domain.Photo{Kind: "biophoto", PIN: rec.BioPhoto.PIN, Type: rec.BioPhoto.Type, Filename: rec.BioPhoto.Filename, Size: rec.BioPhoto.Size, Content: []byte(rec.BioPhoto.Content), SourceSN: sourceSerial}
		cat, payload, idem, err := formatter.PutBioPhoto(p)
		return translated{recordType: "BIOPHOTO", recordKey: p.PIN, category: cat, payload: payload, idempotent: idem, err: err}

	case wire.TagIDCard:
		c := domain.IDCard{
			IDNumber: rec.IDCard.IDNumber,
			Fields:   rec.IDCard.Fields,
			FP1:      rec.IDCard.FP1,
			FP2:      rec.IDCard.FP2,
			Portrait: []byte(rec.IDCard.Portrait),
			SourceSN: sourceSerial,
		}
		cat, payload, idem, err := formatter.PutIDCard(c)
		return translated{recordType: "IDCARD", recordKey: c.IDNumber, category: cat, payload: payload, idempotent: idem, err: err}
	}

	return translated{err: errUnsyncable(rec.Tag)}
}

type errUnsyncable wire.Tag

func (e errUnsyncable) Error() string {
	return "no fan-out translation for tag " + string(e)
}
