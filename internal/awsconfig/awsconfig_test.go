package awsconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/leadtriage/internal/config"
)

func TestResolverRoutesKnownServices(t *testing.T) {
	r := resolver("http://localhost:4566", "ap-south-1")

	ep, err := r.ResolveEndpoint(sqs.ServiceID, "ap-south-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "http://localhost:4566" || ep.SigningRegion != "ap-south-1" {
		t.Fatalf("unexpected endpoint %+v", ep)
	}
	if _, err := r.ResolveEndpoint(s3.ServiceID, "ap-south-1"); err != nil {
		t.Fatalf("s3 should be overridden: %v", err)
	}

	_, err = r.ResolveEndpoint("Lambda", "ap-south-1")
	var notFound *aws.EndpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected EndpointNotFoundError, got %v", err)
	}
}

func TestLoadWithStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "ap-south-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: "http://localhost:4566",
	}
	awsCfg, err := Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "ap-south-1" {
		t.Fatalf("expected region ap-south-1, got %s", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "test" {
		t.Fatalf("expected static credentials, got %s", creds.AccessKeyID)
	}
	if awsCfg.EndpointResolverWithOptions == nil {
		t.Fatal("expected endpoint override resolver")
	}
}
