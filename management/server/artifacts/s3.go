package artifacts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/shared/updates/http/util"
	"github.com/netbirdio/updater/shared/updates/status"
)

type sThree struct {
	bucket        string
	presignClient *s3.PresignClient
	options       []func(*s3.PresignOptions)
}

// NewS3 creates a backend that redirects downloads and uploads to presigned bucket URLs.
// Credentials are resolved by the default AWS chain.
func NewS3(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("artifact bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// custom endpoints such as minio or localstack rarely support virtual host buckets
			o.UsePathStyle = true
		}
	})

	expiry := cfg.PresignExpiry.Duration
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}

	log.WithContext(ctx).Infof("serving artifacts from bucket %s", cfg.Bucket)

	return &sThree{
		bucket:        cfg.Bucket,
		presignClient: s3.NewPresignClient(client),
		options:       []func(*s3.PresignOptions){s3.WithPresignExpires(expiry)},
	}, nil
}

// Get redirects the client to a presigned GET or HEAD URL of the object
func (s *sThree) Get(w http.ResponseWriter, r *http.Request, version, file string) {
	key := ObjectKey(version, file)

	var url string
	var err error
	if r.Method == http.MethodHead {
		req, perr := s.presignClient.PresignHeadObject(r.Context(), &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s.options...)
		err = perr
		if req != nil {
			url = req.URL
		}
	} else {
		req, perr := s.presignClient.PresignGetObject(r.Context(), &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s.options...)
		err = perr
		if req != nil {
			url = req.URL
		}
	}
	if err != nil {
		log.WithContext(r.Context()).Errorf("failed to presign download of %s: %v", key, err)
		util.WriteError(r.Context(), status.Errorf(status.Internal, "failed to get artifact URL"), w)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Put redirects the uploader to a presigned PUT URL of the object
func (s *sThree) Put(w http.ResponseWriter, r *http.Request, version, file string) {
	key := ObjectKey(version, file)

	req, err := s.presignClient.PresignPutObject(r.Context(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s.options...)
	if err != nil {
		log.WithContext(r.Context()).Errorf("failed to presign upload of %s: %v", key, err)
		util.WriteError(r.Context(), status.Errorf(status.Internal, "failed to get upload URL"), w)
		return
	}

	http.Redirect(w, r, req.URL, http.StatusTemporaryRedirect)
}
