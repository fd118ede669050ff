package s3store

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/contentrange"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// session is what the opaque session URL carries between chunk requests.
type session struct {
	Bucket   string
	Key      string
	UploadID string
	PartSize int64
}

func (s session) String() string {
	q := url.Values{}
	q.Set("uploadId", s.UploadID)
	q.Set("partSize", strconv.FormatInt(s.PartSize, 10))
	u := url.URL{Scheme: "s3", Host: s.Bucket, Path: "/" + s.Key, RawQuery: q.Encode()}
	return u.String()
}

func parseSession(raw string) (session, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" {
		return session{}, fmt.Errorf("%w: not an s3 session url", common.ErrValidation)
	}
	size, err := strconv.ParseInt(u.Query().Get("partSize"), 10, 64)
	if err != nil || size <= 0 {
		return session{}, fmt.Errorf("%w: bad part size in session url", common.ErrValidation)
	}
	s := session{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/"), UploadID: u.Query().Get("uploadId"), PartSize: size}
	if s.Bucket == "" || s.Key == "" || s.UploadID == "" {
		return session{}, fmt.Errorf("%w: incomplete session url", common.ErrValidation)
	}
	return s, nil
}

// OpenSession starts a multipart upload. Every chunk but the last must be
// exactly chunkSize bytes and start on a chunkSize boundary.
func (s *Store) OpenSession(ctx context.Context, basePath, relPath string, chunkSize int64) (string, error) {
	if chunkSize <= 0 {
		chunkSize = s.ResolveChunkSize(nil)
	}
	key := storage.JoinPath(basePath, relPath)
	out, err := call(ctx, s, "create multipart upload", func(ctx context.Context) (*s3.CreateMultipartUploadOutput, error) {
		return s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return "", err
	}
	if aws.ToString(out.UploadId) == "" {
		return "", fmt.Errorf("create multipart upload %s: no upload id", key)
	}
	return session{Bucket: s.cfg.Bucket, Key: key, UploadID: aws.ToString(out.UploadId), PartSize: chunkSize}.String(), nil
}

func (s *Store) UploadChunk(ctx context.Context, sessionURL string, data []byte, r contentrange.Range) (*storage.ChunkResult, error) {
	sess, err := parseSession(sessionURL)
	if err != nil {
		return nil, err
	}
	if r.Start%sess.PartSize != 0 || (!r.Final() && r.Len() != sess.PartSize) {
		return nil, fmt.Errorf("%w: %s is not aligned to %d byte parts", common.ErrValidation, r, sess.PartSize)
	}
	partNumber := int32(r.Start/sess.PartSize + 1)

	_, err = call(ctx, s, "upload part "+r.String(), func(ctx context.Context) (*s3.UploadPartOutput, error) {
		return s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(sess.Bucket),
			Key:           aws.String(sess.Key),
			UploadId:      aws.String(sess.UploadID),
			PartNumber:    aws.Int32(partNumber),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		})
	})
	if err != nil {
		return nil, err
	}

	if !r.Final() {
		return &storage.ChunkResult{NextExpectedRanges: []string{fmt.Sprintf("%d-", r.End+1)}}, nil
	}
	return s.complete(ctx, sess, r.Total)
}

// complete finishes the upload once every part is present. Missing parts
// are reported back as expected ranges instead.
func (s *Store) complete(ctx context.Context, sess session, total int64) (*storage.ChunkResult, error) {
	parts, err := s.listParts(ctx, sess)
	if err != nil {
		return nil, err
	}

	want := int32((total + sess.PartSize - 1) / sess.PartSize)
	have := make(map[int32]types.Part, len(parts))
	for _, p := range parts {
		have[aws.ToInt32(p.PartNumber)] = p
	}
	var missing []string
	for n := int32(1); n <= want; n++ {
		if _, ok := have[n]; !ok {
			start := int64(n-1) * sess.PartSize
			end := min(start+sess.PartSize, total) - 1
			missing = append(missing, fmt.Sprintf("%d-%d", start, end))
		}
	}
	if len(missing) > 0 {
		return &storage.ChunkResult{NextExpectedRanges: missing}, nil
	}

	completed := make([]types.CompletedPart, 0, want)
	for n := int32(1); n <= want; n++ {
		completed = append(completed, types.CompletedPart{ETag: have[n].ETag, PartNumber: aws.Int32(n)})
	}

	out, err := call(ctx, s, "complete multipart upload", func(ctx context.Context) (*s3.CompleteMultipartUploadOutput, error) {
		return s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:          aws.String(sess.Bucket),
			Key:             aws.String(sess.Key),
			UploadId:        aws.String(sess.UploadID),
			MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "multipart upload completed", "key", sess.Key, "parts", want)

	dir, name := path.Split(sess.Key)
	item, err := s.GetMetadata(ctx, dir, name)
	if err != nil {
		// Completed but not yet visible; report what we know.
		item = &storage.Item{ID: sess.Key, Name: name, Size: total, ETag: aws.ToString(out.ETag)}
	}
	return &storage.ChunkResult{Done: true, Item: item}, nil
}

func (s *Store) listParts(ctx context.Context, sess session) ([]types.Part, error) {
	var parts []types.Part
	var marker *string
	for {
		out, err := call(ctx, s, "list parts", func(ctx context.Context) (*s3.ListPartsOutput, error) {
			return s.client.ListParts(ctx, &s3.ListPartsInput{
				Bucket:           aws.String(sess.Bucket),
				Key:              aws.String(sess.Key),
				UploadId:         aws.String(sess.UploadID),
				PartNumberMarker: marker,
			})
		})
		if err != nil {
			return nil, err
		}
		parts = append(parts, out.Parts...)
		if !aws.ToBool(out.IsTruncated) || out.NextPartNumberMarker == nil {
			return parts, nil
		}
		marker = out.NextPartNumberMarker
	}
}
