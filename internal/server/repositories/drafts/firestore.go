package drafts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	im "github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const draftsCollection = "drafts"

// firestoreDraft is the document shape; the document ID is the draft ID.
type firestoreDraft struct {
	ClientName         string         `firestore:"clientName"`
	Type               string         `firestore:"type"`
	Status             string         `firestore:"status"`
	CurrentStep        int64          `firestore:"currentStep"`
	Data               map[string]any `firestore:"data"`
	LastModified       time.Time      `firestore:"lastModified"`
	LinkedAssessmentID string         `firestore:"linkedAssessmentId"`
	SchemaVersion      int64          `firestore:"schemaVersion"`
	Version            int64          `firestore:"version"`
	UpdatedAt          time.Time      `firestore:"updatedAt"`
	UpdatedBy          string         `firestore:"updatedBy"`
	DeviceID           string         `firestore:"deviceId"`
}

func toDocument(d *models.StoredDraft) *firestoreDraft {
	data := d.Draft.Data
	if data == nil {
		data = im.Record{}
	}
	return &firestoreDraft{
		ClientName:         d.Draft.ClientName,
		Type:               string(d.Draft.Type),
		Status:             string(d.Draft.Status),
		CurrentStep:        int64(d.Draft.CurrentStep),
		Data:               data,
		LastModified:       d.Draft.LastModified,
		LinkedAssessmentID: d.Draft.LinkedAssessmentID,
		SchemaVersion:      int64(d.Draft.SchemaVersion),
		UpdatedBy:          d.UpdatedBy,
		DeviceID:           d.DeviceID,
	}
}

func (f *firestoreDraft) stored(id string) *models.StoredDraft {
	return &models.StoredDraft{
		Draft: im.Draft{
			ID:                 id,
			ClientName:         f.ClientName,
			Type:               im.DraftType(f.Type),
			Status:             im.DraftStatus(f.Status),
			CurrentStep:        int(f.CurrentStep),
			Data:               f.Data,
			LastModified:       f.LastModified,
			LinkedAssessmentID: f.LinkedAssessmentID,
			Version:            f.Version,
			SchemaVersion:      int(f.SchemaVersion),
		},
		UpdatedAt: f.UpdatedAt,
		UpdatedBy: f.UpdatedBy,
		DeviceID:  f.DeviceID,
	}
}

// FirestoreRepository keeps drafts in a Cloud Firestore collection. Version
// checks run inside Firestore transactions.
type FirestoreRepository struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client, now: time.Now}
}

func (r *FirestoreRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(draftsCollection).Doc(id)
}

func (r *FirestoreRepository) Get(ctx context.Context, id string) (*models.StoredDraft, error) {
	snap, err := r.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("firestore error: %w", err)
	}
	return decode(snap)
}

func (r *FirestoreRepository) Create(ctx context.Context, d *models.StoredDraft) error {
	doc := toDocument(d)
	doc.Version = 1
	doc.UpdatedAt = r.now().UTC()

	if _, err := r.doc(d.Draft.ID).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("firestore error: %w", err)
	}

	d.Draft.Version, d.UpdatedAt = doc.Version, doc.UpdatedAt
	return nil
}

func (r *FirestoreRepository) Update(ctx context.Context, d *models.StoredDraft, expectedVersion int64) error {
	return r.replace(ctx, d, func(current int64, exists bool) bool {
		return exists && current == expectedVersion
	})
}

func (r *FirestoreRepository) Overwrite(ctx context.Context, d *models.StoredDraft) error {
	return r.replace(ctx, d, func(int64, bool) bool { return true })
}

// replace writes d at current+1 inside a transaction when accept allows it.
func (r *FirestoreRepository) replace(ctx context.Context, d *models.StoredDraft, accept func(current int64, exists bool) bool) error {
	ref := r.doc(d.Draft.ID)
	doc := toDocument(d)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current int64
		exists := true

		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			exists = false
		case err != nil:
			return err
		default:
			prev, err := decode(snap)
			if err != nil {
				return err
			}
			current = prev.Draft.Version
		}

		if !accept(current, exists) {
			return common.ErrVersionConflict
		}

		doc.Version = current + 1
		doc.UpdatedAt = r.now().UTC()
		return tx.Set(ref, doc)
	})
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("firestore error: %w", err)
	}

	d.Draft.Version, d.UpdatedAt = doc.Version, doc.UpdatedAt
	return nil
}

func decode(snap *firestore.DocumentSnapshot) (*models.StoredDraft, error) {
	var doc firestoreDraft
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", snap.Ref.ID, err)
	}
	return doc.stored(snap.Ref.ID), nil
}
