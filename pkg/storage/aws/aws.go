// Package aws implements storage.Backend on Amazon S3 static website hosting.
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
)

// deleteBatchSize is the DeleteObjects limit.
const deleteBatchSize = 1000

// Credentials are optional static credentials. When empty the SDK default
// credential chain is used.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Shared config profile - optional
	Profile string
}

// Backend implements storage.Backend for S3.
type Backend struct {
	s3Client  *s3.Client
	stsClient *sts.Client
	region    string
}

var (
	_ storage.Backend           = (*Backend)(nil)
	_ storage.AccountIdentifier = (*Backend)(nil)
)

// New creates an S3 backend for region.
// If static credentials are provided they are used; otherwise it falls back
// to the AWS SDK default credential chain (environment variables, shared
// credentials file, or IAM role).
func New(ctx context.Context, region string, creds *Credentials) (*Backend, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if creds != nil && creds.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(creds.Profile))
	}
	if creds != nil && creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Backend{
		s3Client:  s3.NewFromConfig(cfg),
		stsClient: sts.NewFromConfig(cfg),
		region:    region,
	}, nil
}

func (b *Backend) Name() string   { return "aws" }
func (b *Backend) Region() string { return b.region }

// WebsiteURL returns the S3 website endpoint of bucket.
func (b *Backend) WebsiteURL(bucket string) string {
	return fmt.Sprintf("http://%s.s3-website.%s.amazonaws.com", bucket, b.region)
}

// Account returns the AWS account ID of the configured credentials.
func (b *Backend) Account(ctx context.Context) (string, error) {
	out, err := b.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

func (b *Backend) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := b.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to head bucket %s: %w", bucket, err)
}

func (b *Backend) CreateBucket(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}

	// For regions other than us-east-1, we need to specify LocationConstraint
	if b.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(b.region),
		}
	}

	if _, err := b.s3Client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

func (b *Backend) DisablePublicAccessBlock(ctx context.Context, bucket string) error {
	_, err := b.s3Client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(false),
			IgnorePublicAcls:      aws.Bool(false),
			BlockPublicPolicy:     aws.Bool(false),
			RestrictPublicBuckets: aws.Bool(false),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to disable public access block on %s: %w", bucket, translate(err, bucket, ""))
	}
	return nil
}

// policyDocument is an IAM policy document.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string `json:"Sid"`
	Effect    string `json:"Effect"`
	Principal string `json:"Principal"`
	Action    string `json:"Action"`
	Resource  string `json:"Resource"`
}

// publicReadPolicy allows anonymous GetObject on every object in bucket.
func publicReadPolicy(bucket string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Sid:       "PublicRead",
			Effect:    "Allow",
			Principal: "*",
			Action:    "s3:GetObject",
			Resource:  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
		}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b *Backend) SetPublicReadPolicy(ctx context.Context, bucket string) error {
	policy, err := publicReadPolicy(bucket)
	if err != nil {
		return fmt.Errorf("failed to encode bucket policy: %w", err)
	}
	_, err = b.s3Client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(policy),
	})
	if err != nil {
		return fmt.Errorf("failed to put bucket policy on %s: %w", bucket, translate(err, bucket, ""))
	}
	return nil
}

func (b *Backend) ConfigureWebsite(ctx context.Context, bucket, indexDocument, errorDocument string) error {
	_, err := b.s3Client.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket: aws.String(bucket),
		WebsiteConfiguration: &s3types.WebsiteConfiguration{
			IndexDocument: &s3types.IndexDocument{Suffix: aws.String(indexDocument)},
			ErrorDocument: &s3types.ErrorDocument{Key: aws.String(errorDocument)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to configure website on %s: %w", bucket, translate(err, bucket, ""))
	}
	return nil
}

func (b *Backend) EnableVersioning(ctx context.Context, bucket string) error {
	_, err := b.s3Client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enable versioning on %s: %w", bucket, translate(err, bucket, ""))
	}
	return nil
}

func (b *Backend) PutObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, translate(err, bucket, key))
	}
	return nil
}

func (b *Backend) HeadVersion(ctx context.Context, bucket, key string) (string, error) {
	out, err := b.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to head s3://%s/%s: %w", bucket, key, translate(err, bucket, key))
	}
	return aws.ToString(out.VersionId), nil
}

func (b *Backend) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, translate(err, bucket, key))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// copySource formats the CopySource header for a specific version.
func copySource(bucket, key, versionID string) string {
	path := (&url.URL{Path: bucket + "/" + key}).EscapedPath()
	return path + "?versionId=" + url.QueryEscape(versionID)
}

func (b *Backend) CopyVersion(ctx context.Context, bucket, key, versionID string) error {
	_, err := b.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		CopySource: aws.String(copySource(bucket, key, versionID)),
	})
	if err != nil {
		return fmt.Errorf("failed to copy s3://%s/%s@%s: %w", bucket, key, versionID, translate(err, bucket, key))
	}
	return nil
}

func (b *Backend) ListVersions(ctx context.Context, bucket, key string) ([]storage.Version, error) {
	var versions []storage.Version
	input := &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	}

	for {
		out, err := b.s3Client.ListObjectVersions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions of s3://%s/%s: %w", bucket, key, translate(err, bucket, key))
		}

		for _, v := range out.Versions {
			// Prefix also matches keys such as index.html.bak
			if aws.ToString(v.Key) != key {
				continue
			}
			versions = append(versions, storage.Version{
				ID:         aws.ToString(v.VersionId),
				ModifiedAt: aws.ToTime(v.LastModified),
				IsLatest:   aws.ToBool(v.IsLatest),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.KeyMarker = out.NextKeyMarker
		input.VersionIdMarker = out.NextVersionIdMarker
	}

	return versions, nil
}

func (b *Backend) DeleteAllVersions(ctx context.Context, bucket string) (int, error) {
	deleted := 0
	input := &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
	}

	for {
		out, err := b.s3Client.ListObjectVersions(ctx, input)
		if err != nil {
			return deleted, fmt.Errorf("failed to list versions in %s: %w", bucket, translate(err, bucket, ""))
		}

		var ids []s3types.ObjectIdentifier
		for _, v := range out.Versions {
			ids = append(ids, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range out.DeleteMarkers {
			ids = append(ids, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}

		for start := 0; start < len(ids); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(ids))
			res, err := b.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &s3types.Delete{
					Objects: ids[start:end],
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return deleted, fmt.Errorf("failed to delete versions in %s: %w", bucket, err)
			}
			deleted += end - start - len(res.Errors)
			if err := deleteErrors(bucket, res.Errors); err != nil {
				return deleted, err
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.KeyMarker = out.NextKeyMarker
		input.VersionIdMarker = out.NextVersionIdMarker
	}

	return deleted, nil
}

// deleteErrors reports the per-key failures of a quiet DeleteObjects call,
// which succeeds at the HTTP level even when some keys were not deleted.
func deleteErrors(bucket string, errs []s3types.Error) error {
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return fmt.Errorf("failed to delete %d object versions in %s: %s#%s: %s: %s",
		len(errs), bucket, aws.ToString(first.Key), aws.ToString(first.VersionId),
		aws.ToString(first.Code), aws.ToString(first.Message))
}

func (b *Backend) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := b.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, translate(err, bucket, ""))
	}
	return nil
}

// isNotFound reports whether err is a 404 from HeadBucket or HeadObject.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

// translate maps S3 API error codes onto the shared sentinel errors.
func translate(err error, bucket, key string) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %s: %v", types.ErrNoSuchBucket, bucket, err)
	case "NoSuchKey", "NoSuchVersion", "NotFound":
		return fmt.Errorf("%w: %s/%s: %v", types.ErrNoSuchKey, bucket, key, err)
	default:
		return err
	}
}
