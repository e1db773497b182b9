package mongo

import (
	"bytes"
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/lifecycle"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const proofBucket = "payment_proofs"

// ProofStore keeps payment-proof images in GridFS. References are ObjectID hex strings.
type ProofStore struct {
	db *mongo.Database
}

func NewProofStore(db *mongo.Database) *ProofStore {
	return &ProofStore{db: db}
}

var _ lifecycle.ProofStore = (*ProofStore)(nil)

// bucket is created per call so deadlines from ctx never leak between requests.
func (s *ProofStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(proofBucket))
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := b.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		if err := b.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (s *ProofStore) Save(ctx context.Context, p lifecycle.Proof) (string, error) {
	b, err := s.bucket(ctx)
	if err != nil {
		return "", err
	}
	name := p.Filename
	if name == "" {
		name = p.TransactionID.String()
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "content_type", Value: p.ContentType},
		{Key: "transaction_id", Value: p.TransactionID.String()},
	})
	id, err := b.UploadFromStream(name, bytes.NewReader(p.Data), opts)
	if err != nil {
		return "", errors.Wrap(err, "gridfs upload")
	}
	return id.Hex(), nil
}

func (s *ProofStore) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	oid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, "", domain.NotFoundf("payment proof %s not found", ref)
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return nil, "", err
	}
	ds, err := b.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", domain.NotFoundf("payment proof %s not found", ref)
	}
	if err != nil {
		return nil, "", err
	}
	contentType := "application/octet-stream"
	if meta := ds.GetFile().Metadata; meta != nil {
		if v, ok := meta.Lookup("content_type").StringValueOK(); ok {
			contentType = v
		}
	}
	return ds, contentType, nil
}

func (s *ProofStore) Delete(ctx context.Context, ref string) error {
	oid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return domain.NotFoundf("payment proof %s not found", ref)
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	if err := b.Delete(oid); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return err
	}
	return nil
}
